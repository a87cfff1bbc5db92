// Package workflow implements the PlasmaReport manufacturing workflow on top
// of the stores and nesting packages.
//
// Reconciliation pulls cut programs, work orders and parts from the nesting
// source and creates or refreshes the local copies. Programs that already went
// into production are never touched by an update run. Masters then assign
// workers to programs, operators start programs and claim produced parts, and
// logistics accepts the produced quantities, which rolls each program up to
// DONE once every part is complete.
//
// Every operation returns a *Error classified as conflict, not found,
// validation, storage or empty result, and writes within one transaction.
package workflow
