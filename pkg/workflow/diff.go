package workflow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/plasmareport/plasmareport/pkg/model"
)

// Field accessors name fields the way the nesting export does; the store
// maps the same names to columns.

type partField struct {
	name string
	get  func(*model.PartData) any
}

// partFieldsToCompare is the part field set reconciliation keeps in sync.
var partFieldsToCompare = []partField{
	{"CuttingLength", func(p *model.PartData) any { return p.CuttingLength }},
	{"CuttingTimePart", func(p *model.PartData) any { return p.CuttingTime }},
	{"DueDate", func(p *model.PartData) any { return p.DueDate }},
	{"PK_PIP", func(p *model.PartData) any { return p.PKPIP }},
	{"PartLength", func(p *model.PartData) any { return p.PartLength }},
	{"PartWidth", func(p *model.PartData) any { return p.PartWidth }},
	{"PierceQtyPart", func(p *model.PartData) any { return p.PierceQty }},
	{"WOState", func(p *model.PartData) any { return p.WOState }},
	{"QtyInProcess", func(p *model.PartData) any { return p.QtyInProcess }},
	{"RectArea", func(p *model.PartData) any { return p.RectArea }},
	{"RectWeight", func(p *model.PartData) any { return p.RectWeight }},
	{"RevisionNumber", func(p *model.PartData) any { return p.RevisionNumber }},
	{"TotalCuttingTime", func(p *model.PartData) any { return p.TotalCuttingTime }},
	{"TrueArea", func(p *model.PartData) any { return p.TrueArea }},
	{"TrueWeight", func(p *model.PartData) any { return p.TrueWeight }},
	{"Thickness", func(p *model.PartData) any { return p.Thickness }},
	{"NestedArea", func(p *model.PartData) any { return p.NestedArea }},
	{"MasterPartQty", func(p *model.PartData) any { return p.MasterPartQty }},
	{"SourceFileName", func(p *model.PartData) any { return p.SourceFileName }},
}

type programField struct {
	name string
	get  func(*model.ProgramData) any
}

var programFieldsToCompare = []programField{
	{"RepeatIDProgram", func(p *model.ProgramData) any { return p.RepeatID }},
	{"UsedArea", func(p *model.ProgramData) any { return p.UsedArea }},
	{"ScrapFraction", func(p *model.ProgramData) any { return p.ScrapFraction }},
	{"MachineName", func(p *model.ProgramData) any { return p.MachineName }},
	{"CuttingTimeProgram", func(p *model.ProgramData) any { return p.CuttingTime }},
	{"PostDateTime", func(p *model.ProgramData) any { return p.PostDateTime }},
	{"Material", func(p *model.ProgramData) any { return p.Material }},
	{"Thickness", func(p *model.ProgramData) any { return p.Thickness }},
	{"SheetLength", func(p *model.ProgramData) any { return p.SheetLength }},
	{"SheetWidth", func(p *model.ProgramData) any { return p.SheetWidth }},
	{"ArchivePacketID", func(p *model.ProgramData) any { return p.ArchivePacketID }},
	{"TimeLineID", func(p *model.ProgramData) any { return p.TimeLineID }},
	{"Comment", func(p *model.ProgramData) any { return p.Comment }},
	{"PostedByUserID", func(p *model.ProgramData) any { return p.PostedByUserID }},
	{"PierceQtyProgram", func(p *model.ProgramData) any { return p.PierceQty }},
	{"UserName", func(p *model.ProgramData) any { return p.UserName }},
	{"UserFirstName", func(p *model.ProgramData) any { return p.UserFirstName }},
	{"UserLastName", func(p *model.ProgramData) any { return p.UserLastName }},
	{"UserEMail", func(p *model.ProgramData) any { return p.UserEMail }},
	{"LastLoginDate", func(p *model.ProgramData) any { return p.LastLoginDate }},
}

type orderField struct {
	name string
	get  func(*model.OrderData) any
}

var orderFieldsToCompare = []orderField{
	{"CustomerName", func(o *model.OrderData) any { return o.CustomerName }},
	{"WODate", func(o *model.OrderData) any { return o.WODate }},
	{"OrderDate", func(o *model.OrderData) any { return o.OrderDate }},
	{"WOData1", func(o *model.OrderData) any { return o.WOData1 }},
	{"WOData2", func(o *model.OrderData) any { return o.WOData2 }},
	{"DateCreated", func(o *model.OrderData) any { return o.DateCreated }},
}

// diffPart returns the fields where remote differs from local after
// normalisation. After carries the raw remote value.
func diffPart(local, remote model.PartData) []model.FieldChange {
	var changes []model.FieldChange
	for _, f := range partFieldsToCompare {
		before, after := f.get(&local), f.get(&remote)
		if !sameValue(before, after) {
			changes = append(changes, model.FieldChange{Field: f.name, Before: before, After: after})
		}
	}
	return changes
}

func diffProgram(local, remote model.ProgramData) []model.FieldChange {
	var changes []model.FieldChange
	for _, f := range programFieldsToCompare {
		before, after := f.get(&local), f.get(&remote)
		if !sameValue(before, after) {
			changes = append(changes, model.FieldChange{Field: f.name, Before: before, After: after})
		}
	}
	return changes
}

func diffOrder(local, remote model.OrderData) []model.FieldChange {
	var changes []model.FieldChange
	for _, f := range orderFieldsToCompare {
		before, after := f.get(&local), f.get(&remote)
		if !sameValue(before, after) {
			changes = append(changes, model.FieldChange{Field: f.name, Before: before, After: after})
		}
	}
	return changes
}

// normalize maps a field value onto its comparison form: floats and
// decimals truncate to integers, timestamps to whole seconds in UTC.
func normalize(v any) any {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case decimal.Decimal:
		return t.IntPart()
	case time.Time:
		return t.UTC().Truncate(time.Second)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Truncate(time.Second)
	default:
		return v
	}
}

func sameValue(a, b any) bool {
	na, nb := normalize(a), normalize(b)
	ta, aok := na.(time.Time)
	tb, bok := nb.(time.Time)
	if aok || bok {
		return aok && bok && ta.Equal(tb)
	}
	return na == nb
}
