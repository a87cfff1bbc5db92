package workflow

import (
	"github.com/rs/zerolog"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/nesting"
)

// projection splits flat nesting records into programs, orders and parts.
// The order slices keep first-seen order so inserts are deterministic.
type projection struct {
	programs     map[string]model.ProgramData
	programNames []string

	orders       map[string]model.OrderData
	orderNumbers []string

	parts     map[model.PartKey]model.PartData
	partsByPG map[string][]model.PartKey
}

// project builds the three projections. Programs keep the row with the
// highest RepeatIDProgram, orders keep their first row, parts are unique by
// (PartName, ProgramName, WONumber).
func project(records []nesting.Record, logger zerolog.Logger) *projection {
	p := &projection{
		programs:  make(map[string]model.ProgramData),
		orders:    make(map[string]model.OrderData),
		parts:     make(map[model.PartKey]model.PartData),
		partsByPG: make(map[string][]model.PartKey),
	}

	for _, rec := range records {
		prog := programOf(rec)
		if prev, ok := p.programs[prog.ProgramName]; !ok {
			p.programNames = append(p.programNames, prog.ProgramName)
			p.programs[prog.ProgramName] = prog
		} else if prog.RepeatID > prev.RepeatID {
			p.programs[prog.ProgramName] = prog
		}

		order := orderOf(rec)
		if prev, ok := p.orders[order.WONumber]; !ok {
			p.orderNumbers = append(p.orderNumbers, order.WONumber)
			p.orders[order.WONumber] = order
		} else if changes := diffOrder(prev, order); len(changes) > 0 {
			logger.Warn().
				Str("wo_number", order.WONumber).
				Str("program_name", rec.ProgramName).
				Int("differing_fields", len(changes)).
				Msg("Work order rows disagree, keeping the first one")
		}

		part := partOf(rec)
		key := part.Key()
		if _, ok := p.parts[key]; ok {
			continue
		}
		p.parts[key] = part
		p.partsByPG[part.ProgramName] = append(p.partsByPG[part.ProgramName], key)
	}

	return p
}

// ordersOf returns the order numbers referenced by the parts of the named programs.
func (p *projection) ordersOf(programNames []string) []string {
	seen := make(map[string]struct{})
	var numbers []string
	for _, name := range programNames {
		for _, key := range p.partsByPG[name] {
			if _, ok := seen[key.WONumber]; ok {
				continue
			}
			seen[key.WONumber] = struct{}{}
			numbers = append(numbers, key.WONumber)
		}
	}
	return numbers
}

func programOf(rec nesting.Record) model.ProgramData {
	return model.ProgramData{
		ProgramName:     rec.ProgramName,
		RepeatID:        rec.RepeatIDProgram,
		UsedArea:        rec.UsedArea,
		ScrapFraction:   rec.ScrapFraction,
		MachineName:     rec.MachineName,
		CuttingTime:     rec.CuttingTimeProgram,
		PostDateTime:    rec.PostDateTime,
		Material:        rec.Material,
		Thickness:       rec.Thickness,
		SheetLength:     rec.SheetLength,
		SheetWidth:      rec.SheetWidth,
		ArchivePacketID: rec.ArchivePacketID,
		TimeLineID:      rec.TimeLineID,
		Comment:         rec.Comment,
		PostedByUserID:  rec.PostedByUserID,
		PierceQty:       rec.PierceQtyProgram,
		UserName:        rec.UserName,
		UserFirstName:   rec.UserFirstName,
		UserLastName:    rec.UserLastName,
		UserEMail:       rec.UserEMail,
		LastLoginDate:   rec.LastLoginDate,
	}
}

func orderOf(rec nesting.Record) model.OrderData {
	return model.OrderData{
		WONumber:     rec.WONumber,
		CustomerName: rec.CustomerName,
		WODate:       rec.WODate,
		OrderDate:    rec.OrderDate,
		WOData1:      rec.WOData1,
		WOData2:      rec.WOData2,
		DateCreated:  rec.DateCreated,
	}
}

func partOf(rec nesting.Record) model.PartData {
	return model.PartData{
		PartName:         rec.PartName,
		ProgramName:      rec.ProgramName,
		WONumber:         rec.WONumber,
		QtyInProcess:     rec.QtyInProcess,
		PartLength:       rec.PartLength,
		PartWidth:        rec.PartWidth,
		TrueArea:         rec.TrueArea,
		RectArea:         rec.RectArea,
		TrueWeight:       rec.TrueWeight,
		RectWeight:       rec.RectWeight,
		CuttingTime:      rec.CuttingTimePart,
		CuttingLength:    rec.CuttingLength,
		PierceQty:        rec.PierceQtyPart,
		NestedArea:       rec.NestedArea,
		TotalCuttingTime: rec.TotalCuttingTime,
		MasterPartQty:    rec.MasterPartQty,
		WOState:          rec.WOState,
		DueDate:          rec.DueDate,
		RevisionNumber:   rec.RevisionNumber,
		PKPIP:            rec.PKPIP,
		Thickness:        rec.Thickness,
		SourceFileName:   rec.SourceFileName,
	}
}
