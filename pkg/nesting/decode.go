package nesting

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ContractError reports a source row whose shape does not match the record
// contract. Problems lists every offending field of the row.
type ContractError struct {
	Row      int
	Program  string
	Problems []string
}

func (e *ContractError) Error() string {
	where := fmt.Sprintf("row %d", e.Row)
	if e.Program != "" {
		where += fmt.Sprintf(" (program %s)", e.Program)
	}
	return fmt.Sprintf("nesting record %s violates contract: %s", where, strings.Join(e.Problems, "; "))
}

// Timestamp layouts accepted from text columns and export files. Values without
// a zone are taken as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// rowReader pulls typed values out of a column map and collects problems
// instead of failing on the first one.
type rowReader struct {
	row      map[string]any
	folded   map[string]string
	problems []string
}

func newRowReader(row map[string]any) *rowReader {
	folded := make(map[string]string, len(row))
	for k := range row {
		folded[strings.ToLower(k)] = k
	}
	return &rowReader{row: row, folded: folded}
}

func (r *rowReader) lookup(key string) (any, bool) {
	if v, ok := r.row[key]; ok {
		return v, true
	}
	if k, ok := r.folded[strings.ToLower(key)]; ok {
		return r.row[k], true
	}
	r.problems = append(r.problems, key+": missing")
	return nil, false
}

func (r *rowReader) fail(key string, v any, want string) {
	r.problems = append(r.problems, fmt.Sprintf("%s: cannot use %T value %v as %s", key, v, v, want))
}

func (r *rowReader) str(key string) string {
	v, ok := r.lookup(key)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		r.fail(key, v, "text")
		return ""
	}
}

func (r *rowReader) f64(key string) float64 {
	v, ok := r.lookup(key)
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case int:
		return float64(t)
	case decimal.Decimal:
		return t.InexactFloat64()
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			r.fail(key, v, "number")
		}
		return f
	case string, []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(asString(t)), 64)
		if err != nil {
			r.fail(key, v, "number")
		}
		return f
	default:
		r.fail(key, v, "number")
		return 0
	}
}

func (r *rowReader) i64(key string) int64 {
	v, ok := r.lookup(key)
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return truncate(t)
	case decimal.Decimal:
		return t.IntPart()
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, err := t.Float64()
		if err != nil {
			r.fail(key, v, "integer")
		}
		return truncate(f)
	case string, []byte:
		s := strings.TrimSpace(asString(t))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			r.fail(key, v, "integer")
		}
		return truncate(f)
	default:
		r.fail(key, v, "integer")
		return 0
	}
}

func (r *rowReader) dec(key string) decimal.Decimal {
	v, ok := r.lookup(key)
	if !ok || v == nil {
		return decimal.Zero
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t
	case float64:
		return decimal.NewFromFloat(t)
	case float32:
		return decimal.NewFromFloat32(t)
	case int64:
		return decimal.NewFromInt(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			r.fail(key, v, "decimal")
		}
		return d
	case string, []byte:
		d, err := decimal.NewFromString(strings.TrimSpace(asString(t)))
		if err != nil {
			r.fail(key, v, "decimal")
		}
		return d
	default:
		r.fail(key, v, "decimal")
		return decimal.Zero
	}
}

func (r *rowReader) ts(key string) time.Time {
	v, ok := r.lookup(key)
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string, []byte:
		parsed, err := parseTime(asString(t))
		if err != nil {
			r.fail(key, v, "timestamp")
		}
		return parsed
	default:
		r.fail(key, v, "timestamp")
		return time.Time{}
	}
}

func (r *rowReader) optTS(key string) *time.Time {
	v, ok := r.row[key]
	if !ok {
		if k, found := r.folded[strings.ToLower(key)]; found {
			v = r.row[k]
		}
	}
	if v == nil {
		return nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil
	}
	t := r.ts(key)
	return &t
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	return ""
}

func truncate(f float64) int64 {
	return int64(math.Trunc(f))
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// DecodeRow converts one column map into a Record. All shape problems of the
// row are reported together in a *ContractError.
func DecodeRow(index int, row map[string]any) (Record, error) {
	r := newRowReader(row)

	rec := Record{
		ProgramName:        r.str("ProgramName"),
		RepeatIDProgram:    r.i64("RepeatIDProgram"),
		UsedArea:           r.f64("UsedArea"),
		ScrapFraction:      r.f64("ScrapFraction"),
		MachineName:        r.str("MachineName"),
		CuttingTimeProgram: r.dec("CuttingTimeProgram"),
		PostDateTime:       r.ts("PostDateTime"),
		Material:           r.str("Material"),
		Thickness:          r.f64("Thickness"),
		SheetLength:        r.f64("SheetLength"),
		SheetWidth:         r.f64("SheetWidth"),
		ArchivePacketID:    r.i64("ArchivePacketID"),
		TimeLineID:         r.i64("TimeLineID"),
		Comment:            r.str("Comment"),
		PostedByUserID:     r.i64("PostedByUserID"),
		PierceQtyProgram:   r.i64("PierceQtyProgram"),
		UserName:           r.str("UserName"),
		UserFirstName:      r.str("UserFirstName"),
		UserLastName:       r.str("UserLastName"),
		UserEMail:          r.str("UserEMail"),
		LastLoginDate:      r.optTS("LastLoginDate"),

		WONumber:     r.str("WONumber"),
		CustomerName: r.str("CustomerName"),
		WODate:       r.ts("WODate"),
		OrderDate:    r.ts("OrderDate"),
		WOData1:      r.str("WOData1"),
		WOData2:      r.str("WOData2"),
		DateCreated:  r.ts("DateCreated"),

		PartName:         r.str("PartName"),
		QtyInProcess:     r.i64("QtyInProcess"),
		PartLength:       r.f64("PartLength"),
		PartWidth:        r.f64("PartWidth"),
		TrueArea:         r.f64("TrueArea"),
		RectArea:         r.f64("RectArea"),
		TrueWeight:       r.f64("TrueWeight"),
		RectWeight:       r.f64("RectWeight"),
		CuttingTimePart:  r.dec("CuttingTimePart"),
		CuttingLength:    r.f64("CuttingLength"),
		PierceQtyPart:    r.i64("PierceQtyPart"),
		NestedArea:       r.f64("NestedArea"),
		TotalCuttingTime: r.dec("TotalCuttingTime"),
		MasterPartQty:    r.i64("MasterPartQty"),
		WOState:          r.str("WOState"),
		DueDate:          r.ts("DueDate"),
		RevisionNumber:   r.str("RevisionNumber"),
		PKPIP:            r.str("PK_PIP"),
		SourceFileName:   r.str("SourceFileName"),
	}

	if len(r.problems) > 0 {
		return Record{}, &ContractError{Row: index, Program: rec.ProgramName, Problems: r.problems}
	}
	return rec, nil
}

// DecodeRows decodes every row. The error, if any, joins one *ContractError
// per bad row.
func DecodeRows(rows []map[string]any) ([]Record, error) {
	records := make([]Record, 0, len(rows))
	var errs []error
	for i, row := range rows {
		rec, err := DecodeRow(i, row)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}
	return records, nil
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
