package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/plasmareport/plasmareport/pkg/nesting"
	"github.com/plasmareport/plasmareport/pkg/stores"
)

// ErrorClass tells callers how to react to a failed operation.
type ErrorClass string

const (
	// ClassConflict means the request clashes with current state: a duplicate
	// id in the batch, an existing name, or a program in the wrong status.
	ClassConflict ErrorClass = "conflict"

	// ClassNotFound means referenced ids or names do not exist.
	ClassNotFound ErrorClass = "not_found"

	// ClassValidation means the request itself is malformed.
	ClassValidation ErrorClass = "validation"

	// ClassStorage means the store or the nesting source failed.
	ClassStorage ErrorClass = "storage"

	// ClassEmptyResult means a query that must return rows returned none.
	ClassEmptyResult ErrorClass = "empty_result"
)

// Error is the classified error returned by every Service operation.
type Error struct {
	Class   ErrorClass `json:"class"`
	Op      string     `json:"op"`
	Message string     `json:"message"`

	// IDs and Names list the offending records, when there are any.
	IDs   []int64  `json:"ids,omitempty"`
	Names []string `json:"names,omitempty"`

	// Problems holds field-level validation messages.
	Problems []string `json:"problems,omitempty"`

	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", e.Class, e.Op, e.Message)
	if len(e.IDs) > 0 {
		fmt.Fprintf(&b, " (ids=%v)", e.IDs)
	}
	if len(e.Names) > 0 {
		fmt.Fprintf(&b, " (names=%s)", strings.Join(e.Names, ", "))
	}
	if len(e.Problems) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Problems, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

func conflictError(op, message string) *Error {
	return &Error{Class: ClassConflict, Op: op, Message: message}
}

func notFoundIDs(op, what string, ids []int64) *Error {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &Error{Class: ClassNotFound, Op: op, Message: what + " not found", IDs: sorted}
}

func notFoundNames(op, what string, names []string) *Error {
	return &Error{Class: ClassNotFound, Op: op, Message: what + " not found", Names: sortedStrings(names)}
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func validationError(op, message string, problems ...string) *Error {
	return &Error{Class: ClassValidation, Op: op, Message: message, Problems: problems}
}

func emptyResult(op, message string) *Error {
	return &Error{Class: ClassEmptyResult, Op: op, Message: message}
}

// classify turns any error escaping an operation into an *Error.
func classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var werr *Error
	if errors.As(err, &werr) {
		return werr
	}

	var cerr *nesting.ContractError
	switch {
	case errors.As(err, &cerr):
		return &Error{Class: ClassValidation, Op: op, Message: "nesting record rejected", Err: err}
	case errors.Is(err, stores.ErrNotFound):
		return &Error{Class: ClassNotFound, Op: op, Message: "record not found", Err: err}
	case errors.Is(err, stores.ErrDuplicate):
		return &Error{Class: ClassConflict, Op: op, Message: "record already exists", Err: err}
	}
	return &Error{Class: ClassStorage, Op: op, Message: "storage failure", Err: err}
}

// ClassOf returns the class of err, or "" when err is not classified.
func ClassOf(err error) ErrorClass {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Class
	}
	return ""
}

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool {
	return ClassOf(err) == ClassConflict
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return ClassOf(err) == ClassNotFound
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return ClassOf(err) == ClassValidation
}

// IsStorage reports whether err is a storage error.
func IsStorage(err error) bool {
	return ClassOf(err) == ClassStorage
}

// IsEmptyResult reports whether err is an empty-result error.
func IsEmptyResult(err error) bool {
	return ClassOf(err) == ClassEmptyResult
}
