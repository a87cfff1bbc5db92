package nesting

import (
	"context"
	"time"
)

// Source is the nesting database as seen by reconciliation. Implementations
// may block on network or disk; callers go through Fetch.
type Source interface {
	// ProgramNames lists programs posted within [from, to].
	ProgramNames(ctx context.Context, from, to time.Time) ([]ProgramSummary, error)

	// Records returns every (program, part) row of the named programs. Names
	// the source does not know are simply absent from the result.
	Records(ctx context.Context, names []string) ([]Record, error)
}

type fetchResult[T any] struct {
	value T
	err   error
}

// Fetch runs a blocking source call on its own goroutine so the caller's
// goroutine only waits on the result or on ctx. The call itself is not
// interrupted when ctx ends; its result is dropped.
func Fetch[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	done := make(chan fetchResult[T], 1)

	go func() {
		v, err := call(ctx)
		done <- fetchResult[T]{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

// ProgramNamesOf returns the distinct program names of the records in first
// seen order.
func ProgramNamesOf(records []Record) []string {
	seen := make(map[string]struct{}, len(records))
	names := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.ProgramName]; ok {
			continue
		}
		seen[r.ProgramName] = struct{}{}
		names = append(names, r.ProgramName)
	}
	return names
}

// decodeChecked decodes raw rows and validates them against the contract.
func decodeChecked(contract *Contract, rows []map[string]any) ([]Record, error) {
	records, err := DecodeRows(rows)
	if err != nil {
		return nil, err
	}
	if contract != nil {
		if err := contract.CheckAll(records); err != nil {
			return nil, err
		}
	}
	return records, nil
}
