// Package stores is the persistence gateway of PlasmaReport.
//
// SQLiteStore keeps programs, work orders, parts, workers, storage cells,
// program/worker assignments and the audit trail in one SQLite database
// (WAL mode, foreign keys on, embedded migrations). All reads and writes go
// through Store.WithTx so each workflow operation commits or rolls back as a
// single unit. Natural keys are enforced by unique constraints: program name,
// work order number, (part, program, order) and (program, worker).
package stores
