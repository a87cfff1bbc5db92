// Package model defines the shared vocabulary of the PlasmaReport workflow:
// the Program, WorkOrder, Part, Worker and StorageCell records, the status
// state machines with their transition graph, the priority scale, and the
// localized display labels that are kept apart from the machine identifiers.
package model
