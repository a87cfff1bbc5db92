package model

import (
	"fmt"
	"strings"
)

// ProgramStatus is the lifecycle state of a cut program.
type ProgramStatus string

const (
	// ProgramStatusNew is the transient state of a program that was fetched but not stored yet.
	ProgramStatusNew ProgramStatus = "NEW"

	// ProgramStatusCreated is the state of a program freshly inserted by reconciliation.
	ProgramStatusCreated ProgramStatus = "CREATED"

	// ProgramStatusUnassigned marks a program waiting for a master to assign operators.
	ProgramStatusUnassigned ProgramStatus = "UNASSIGNED"

	// ProgramStatusAssigned is entered when a master binds workers to the program.
	ProgramStatusAssigned ProgramStatus = "ASSIGNED"

	// ProgramStatusActive is entered when an operator starts cutting.
	ProgramStatusActive ProgramStatus = "ACTIVE"

	// ProgramStatusCalculating means produced parts were handed off and wait for quantity acceptance.
	ProgramStatusCalculating ProgramStatus = "CALCULATING"

	// ProgramStatusDone is terminal: every part of the program reached a completion status.
	ProgramStatusDone ProgramStatus = "DONE"
)

// programTransitions is the program state graph. A status missing from the map has no successors.
var programTransitions = map[ProgramStatus][]ProgramStatus{
	ProgramStatusNew:         {ProgramStatusCreated},
	ProgramStatusCreated:     {ProgramStatusUnassigned, ProgramStatusAssigned},
	ProgramStatusUnassigned:  {ProgramStatusAssigned},
	ProgramStatusAssigned:    {ProgramStatusAssigned, ProgramStatusActive},
	ProgramStatusActive:      {ProgramStatusCalculating},
	ProgramStatusCalculating: {ProgramStatusCalculating, ProgramStatusDone},
}

// ProgramStatuses lists every program status in lifecycle order.
func ProgramStatuses() []ProgramStatus {
	return []ProgramStatus{
		ProgramStatusNew,
		ProgramStatusCreated,
		ProgramStatusUnassigned,
		ProgramStatusAssigned,
		ProgramStatusActive,
		ProgramStatusCalculating,
		ProgramStatusDone,
	}
}

// Validate checks if the program status is known.
func (s ProgramStatus) Validate() error {
	for _, known := range ProgramStatuses() {
		if s == known {
			return nil
		}
	}
	return fmt.Errorf("invalid program status: %s", s)
}

// IsTerminal returns true if no transition leaves the status.
func (s ProgramStatus) IsTerminal() bool {
	return s == ProgramStatusDone
}

// CanTransitionTo reports whether the graph has an edge from s to next.
func (s ProgramStatus) CanTransitionTo(next ProgramStatus) bool {
	for _, candidate := range programTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsSyncable reports whether reconciliation may update the program in place.
func (s ProgramStatus) IsSyncable() bool {
	return s == ProgramStatusCreated || s == ProgramStatusUnassigned
}

// IsAssignable reports whether a master may (re)assign workers to the program.
func (s ProgramStatus) IsAssignable() bool {
	return s.CanTransitionTo(ProgramStatusAssigned)
}

// ParseProgramStatus parses a machine identifier, case-insensitively.
func ParseProgramStatus(raw string) (ProgramStatus, error) {
	s := ProgramStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// PartStatus is the lifecycle state of a part.
type PartStatus string

const (
	// PartStatusUnassigned is the initial state of every reconciled part.
	PartStatusUnassigned PartStatus = "UNASSIGNED"

	// PartStatusAssigned is set when the owning program is assigned.
	PartStatusAssigned PartStatus = "ASSIGNED"

	// PartStatusDonePartial means fewer parts were produced than expected.
	PartStatusDonePartial PartStatus = "DONE_PARTIAL"

	// PartStatusDoneFull means exactly the expected quantity was produced.
	PartStatusDoneFull PartStatus = "DONE_FULL"
)

// PartStatuses lists every part status in lifecycle order.
func PartStatuses() []PartStatus {
	return []PartStatus{PartStatusUnassigned, PartStatusAssigned, PartStatusDonePartial, PartStatusDoneFull}
}

// Validate checks if the part status is known.
func (s PartStatus) Validate() error {
	for _, known := range PartStatuses() {
		if s == known {
			return nil
		}
	}
	return fmt.Errorf("invalid part status: %s", s)
}

// IsDone returns true for both completion statuses.
func (s PartStatus) IsDone() bool {
	return s == PartStatusDonePartial || s == PartStatusDoneFull
}

// CompletionStatus derives the status of a part from its produced and expected quantities.
// Callers must reject actual > expected before calling.
func CompletionStatus(actual, expected int64) PartStatus {
	if actual < expected {
		return PartStatusDonePartial
	}
	return PartStatusDoneFull
}

// WOStatus is the display-only state of a work order.
type WOStatus string

const (
	WOStatusCreated  WOStatus = "CREATED"
	WOStatusActive   WOStatus = "ACTIVE"
	WOStatusFinished WOStatus = "FINISHED"
)

// WOStatuses lists every work order status.
func WOStatuses() []WOStatus {
	return []WOStatus{WOStatusCreated, WOStatusActive, WOStatusFinished}
}

// Validate checks if the work order status is known.
func (s WOStatus) Validate() error {
	for _, known := range WOStatuses() {
		if s == known {
			return nil
		}
	}
	return fmt.Errorf("invalid work order status: %s", s)
}

// Priority orders programs for the shop floor.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// DefaultPriority is used when an assignment does not name one.
const DefaultPriority = PriorityLow

// Priorities lists priorities from lowest to highest.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// Rank returns the position of the priority on the ordered scale, or -1 if unknown.
func (p Priority) Rank() int {
	for i, known := range Priorities() {
		if p == known {
			return i
		}
	}
	return -1
}

// Validate checks if the priority is known.
func (p Priority) Validate() error {
	if p.Rank() < 0 {
		return fmt.Errorf("invalid priority: %s", p)
	}
	return nil
}

// OrDefault returns p, or DefaultPriority when p is empty.
func (p Priority) OrDefault() Priority {
	if p == "" {
		return DefaultPriority
	}
	return p
}

// Job is the role tag of a worker.
type Job string

const (
	JobOperator     Job = "OPERATOR"
	JobMaster       Job = "MASTER"
	JobTechnologist Job = "TECHNOLOGIST"
)

// Jobs lists every worker role.
func Jobs() []Job {
	return []Job{JobOperator, JobMaster, JobTechnologist}
}

// Validate checks if the job is known.
func (j Job) Validate() error {
	for _, known := range Jobs() {
		if j == known {
			return nil
		}
	}
	return fmt.Errorf("invalid job: %s", j)
}
