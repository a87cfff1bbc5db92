package stores

// Writable columns per table, keyed by the field names used in field changes.
// Anything not listed here cannot be written through Update*Fields.

var programColumns = map[string]string{
	"RepeatIDProgram":    "repeat_id",
	"UsedArea":           "used_area",
	"ScrapFraction":      "scrap_fraction",
	"MachineName":        "machine_name",
	"CuttingTimeProgram": "cutting_time",
	"PostDateTime":       "post_date_time",
	"Material":           "material",
	"Thickness":          "thickness",
	"SheetLength":        "sheet_length",
	"SheetWidth":         "sheet_width",
	"ArchivePacketID":    "archive_packet_id",
	"TimeLineID":         "time_line_id",
	"Comment":            "comment",
	"PostedByUserID":     "posted_by_user_id",
	"PierceQtyProgram":   "pierce_qty",
	"UserName":           "user_name",
	"UserFirstName":      "user_first_name",
	"UserLastName":       "user_last_name",
	"UserEMail":          "user_email",
	"LastLoginDate":      "last_login_date",
	"LayoutPath":         "layout_path",
	"MasterWorkerID":     "master_worker_id",
}

var orderColumns = map[string]string{
	"CustomerName": "customer_name",
	"WODate":       "wo_date",
	"OrderDate":    "order_date",
	"WOData1":      "wo_data1",
	"WOData2":      "wo_data2",
	"DateCreated":  "date_created",
}

var partColumns = map[string]string{
	"QtyInProcess":     "qty_in_process",
	"PartLength":       "part_length",
	"PartWidth":        "part_width",
	"TrueArea":         "true_area",
	"RectArea":         "rect_area",
	"TrueWeight":       "true_weight",
	"RectWeight":       "rect_weight",
	"CuttingTimePart":  "cutting_time",
	"CuttingLength":    "cutting_length",
	"PierceQtyPart":    "pierce_qty",
	"NestedArea":       "nested_area",
	"TotalCuttingTime": "total_cutting_time",
	"MasterPartQty":    "master_part_qty",
	"WOState":          "wo_state",
	"DueDate":          "due_date",
	"RevisionNumber":   "revision_number",
	"PK_PIP":           "pk_pip",
	"Thickness":        "thickness",
	"SourceFileName":   "source_file_name",
}
