package nesting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one flat (program, part) row from the nesting database. It carries
// the program, the owning work order and the part fields side by side; field
// names follow the nesting export columns.
type Record struct {
	// Program
	ProgramName        string          `json:"ProgramName" yaml:"ProgramName"`
	RepeatIDProgram    int64           `json:"RepeatIDProgram" yaml:"RepeatIDProgram"`
	UsedArea           float64         `json:"UsedArea" yaml:"UsedArea"`
	ScrapFraction      float64         `json:"ScrapFraction" yaml:"ScrapFraction"`
	MachineName        string          `json:"MachineName" yaml:"MachineName"`
	CuttingTimeProgram decimal.Decimal `json:"CuttingTimeProgram" yaml:"CuttingTimeProgram"`
	PostDateTime       time.Time       `json:"PostDateTime" yaml:"PostDateTime"`
	Material           string          `json:"Material" yaml:"Material"`
	Thickness          float64         `json:"Thickness" yaml:"Thickness"`
	SheetLength        float64         `json:"SheetLength" yaml:"SheetLength"`
	SheetWidth         float64         `json:"SheetWidth" yaml:"SheetWidth"`
	ArchivePacketID    int64           `json:"ArchivePacketID" yaml:"ArchivePacketID"`
	TimeLineID         int64           `json:"TimeLineID" yaml:"TimeLineID"`
	Comment            string          `json:"Comment" yaml:"Comment"`
	PostedByUserID     int64           `json:"PostedByUserID" yaml:"PostedByUserID"`
	PierceQtyProgram   int64           `json:"PierceQtyProgram" yaml:"PierceQtyProgram"`
	UserName           string          `json:"UserName" yaml:"UserName"`
	UserFirstName      string          `json:"UserFirstName" yaml:"UserFirstName"`
	UserLastName       string          `json:"UserLastName" yaml:"UserLastName"`
	UserEMail          string          `json:"UserEMail" yaml:"UserEMail"`
	LastLoginDate      *time.Time      `json:"LastLoginDate,omitempty" yaml:"LastLoginDate,omitempty"`

	// Work order
	WONumber     string    `json:"WONumber" yaml:"WONumber"`
	CustomerName string    `json:"CustomerName" yaml:"CustomerName"`
	WODate       time.Time `json:"WODate" yaml:"WODate"`
	OrderDate    time.Time `json:"OrderDate" yaml:"OrderDate"`
	WOData1      string    `json:"WOData1" yaml:"WOData1"`
	WOData2      string    `json:"WOData2" yaml:"WOData2"`
	DateCreated  time.Time `json:"DateCreated" yaml:"DateCreated"`

	// Part
	PartName         string          `json:"PartName" yaml:"PartName"`
	QtyInProcess     int64           `json:"QtyInProcess" yaml:"QtyInProcess"`
	PartLength       float64         `json:"PartLength" yaml:"PartLength"`
	PartWidth        float64         `json:"PartWidth" yaml:"PartWidth"`
	TrueArea         float64         `json:"TrueArea" yaml:"TrueArea"`
	RectArea         float64         `json:"RectArea" yaml:"RectArea"`
	TrueWeight       float64         `json:"TrueWeight" yaml:"TrueWeight"`
	RectWeight       float64         `json:"RectWeight" yaml:"RectWeight"`
	CuttingTimePart  decimal.Decimal `json:"CuttingTimePart" yaml:"CuttingTimePart"`
	CuttingLength    float64         `json:"CuttingLength" yaml:"CuttingLength"`
	PierceQtyPart    int64           `json:"PierceQtyPart" yaml:"PierceQtyPart"`
	NestedArea       float64         `json:"NestedArea" yaml:"NestedArea"`
	TotalCuttingTime decimal.Decimal `json:"TotalCuttingTime" yaml:"TotalCuttingTime"`
	MasterPartQty    int64           `json:"MasterPartQty" yaml:"MasterPartQty"`
	WOState          string          `json:"WOState" yaml:"WOState"`
	DueDate          time.Time       `json:"DueDate" yaml:"DueDate"`
	RevisionNumber   string          `json:"RevisionNumber" yaml:"RevisionNumber"`
	PKPIP            string          `json:"PK_PIP" yaml:"PK_PIP"`
	SourceFileName   string          `json:"SourceFileName" yaml:"SourceFileName"`
}

// ProgramSummary is one entry of a program listing by post date.
type ProgramSummary struct {
	ProgramName  string    `json:"ProgramName"`
	PostDateTime time.Time `json:"PostDateTime"`
}
