package nesting

import (
	"fmt"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// recordSchema holds the semantic rules a decoded record must satisfy on top of
// its column types.
const recordSchema = `
#Key: string & =~"\\S"
#Stamp: string & =~"^[0-9]{4}-[0-9]{2}-[0-9]{2}T" & !~"^0001-"
#Qty: int & >=0
#Measure: number & >=0

#Record: {
	ProgramName:     #Key
	RepeatIDProgram: #Qty
	UsedArea:        #Measure
	ScrapFraction:   #Measure
	PostDateTime:    #Stamp
	Thickness:       #Measure
	SheetLength:     #Measure
	SheetWidth:      #Measure
	PierceQtyProgram: #Qty

	WONumber: #Key

	PartName:      #Key
	QtyInProcess:  #Qty
	PartLength:    #Measure
	PartWidth:     #Measure
	TrueArea:      #Measure
	RectArea:      #Measure
	TrueWeight:    #Measure
	RectWeight:    #Measure
	CuttingLength: #Measure
	PierceQtyPart: #Qty
	NestedArea:    #Measure
	MasterPartQty: #Qty
}
`

// Contract validates decoded records against the CUE record schema.
type Contract struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewContract compiles the record schema.
func NewContract() (*Contract, error) {
	ctx := cuecontext.New()

	val := ctx.CompileString(recordSchema, cue.Filename("record.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile record schema: %w", err)
	}

	schema := val.LookupPath(cue.ParsePath("#Record"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to find record definition: %w", err)
	}

	return &Contract{ctx: ctx, schema: schema}, nil
}

// Check validates one record. Violations come back as a *ContractError.
func (c *Contract) Check(index int, rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.ctx.Encode(contractView(rec))
	if err := data.Err(); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	unified := c.schema.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var problems []string
		for _, e := range errors.Errors(err) {
			problems = append(problems, errors.Details(e, nil))
		}
		return &ContractError{Row: index, Program: rec.ProgramName, Problems: problems}
	}

	return nil
}

// CheckAll validates every record and joins the violations.
func (c *Contract) CheckAll(records []Record) error {
	var errs []error
	for i, rec := range records {
		if err := c.Check(i, rec); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

// contractView is the primitive projection of a record the schema sees.
func contractView(r Record) map[string]any {
	return map[string]any{
		"ProgramName":      r.ProgramName,
		"RepeatIDProgram":  r.RepeatIDProgram,
		"UsedArea":         r.UsedArea,
		"ScrapFraction":    r.ScrapFraction,
		"PostDateTime":     r.PostDateTime.UTC().Format(time.RFC3339),
		"Thickness":        r.Thickness,
		"SheetLength":      r.SheetLength,
		"SheetWidth":       r.SheetWidth,
		"PierceQtyProgram": r.PierceQtyProgram,
		"WONumber":         r.WONumber,
		"PartName":         r.PartName,
		"QtyInProcess":     r.QtyInProcess,
		"PartLength":       r.PartLength,
		"PartWidth":        r.PartWidth,
		"TrueArea":         r.TrueArea,
		"RectArea":         r.RectArea,
		"TrueWeight":       r.TrueWeight,
		"RectWeight":       r.RectWeight,
		"CuttingLength":    r.CuttingLength,
		"PierceQtyPart":    r.PierceQtyPart,
		"NestedArea":       r.NestedArea,
		"MasterPartQty":    r.MasterPartQty,
	}
}
