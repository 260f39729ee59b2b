// Package preflight provides readiness checks for the filesystem, credentials
// and external binaries a batch run depends on.
//
// `scribe check` renders every result; the batch command runs the same checks
// before taking the output lock and refuses to start when a required check
// fails, so a run never spends hours on a doomed configuration.
package preflight
