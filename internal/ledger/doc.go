// Package ledger records batch runs and their job outcomes in a SQLite
// database so `scribe history` can report on past runs.
//
// The store mirrors each run as one row in runs and one row per job in jobs.
// Writes retry briefly on SQLITE_BUSY; the schema is versioned and a
// mismatched database must be removed by the operator.
package ledger
