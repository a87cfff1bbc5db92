package nesting

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord(t *testing.T) Record {
	t.Helper()
	rec, err := DecodeRow(0, sampleRow("P-1", "WO-1", "A"))
	require.NoError(t, err)
	return rec
}

func TestContractAcceptsValidRecord(t *testing.T) {
	contract, err := NewContract()
	require.NoError(t, err)

	assert.NoError(t, contract.Check(0, validRecord(t)))
}

func TestContractRejections(t *testing.T) {
	contract, err := NewContract()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"blank program name", func(r *Record) { r.ProgramName = "  " }},
		{"empty order number", func(r *Record) { r.WONumber = "" }},
		{"empty part name", func(r *Record) { r.PartName = "" }},
		{"negative quantity", func(r *Record) { r.QtyInProcess = -1 }},
		{"negative area", func(r *Record) { r.TrueArea = -0.5 }},
		{"missing post date", func(r *Record) { r.PostDateTime = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord(t)
			tt.mutate(&rec)

			err := contract.Check(2, rec)
			require.Error(t, err)

			var cerr *ContractError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, 2, cerr.Row)
			assert.NotEmpty(t, cerr.Problems)
		})
	}
}

func TestContractCheckAll(t *testing.T) {
	contract, err := NewContract()
	require.NoError(t, err)

	good := validRecord(t)
	bad := validRecord(t)
	bad.MasterPartQty = -3

	assert.NoError(t, contract.CheckAll([]Record{good, good}))

	err = contract.CheckAll([]Record{good, bad})
	var cerr *ContractError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 1, cerr.Row)
}
