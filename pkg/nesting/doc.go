// Package nesting adapts the external nesting database to reconciliation.
//
// A Source returns flat Records, one per (program, part) row, carrying the
// program, work order and part columns together. SQLSource reads SQL Server
// through the sqlserver driver; FileSource reads JSON or YAML exports from a
// directory and Watcher reports programs whose exports change. Raw rows are
// decoded by DecodeRows and checked against a CUE schema by Contract; any
// mismatch surfaces as a *ContractError before reconciliation writes
// anything. Source calls block, so callers wrap them in Fetch.
package nesting
