// Package lifecycle owns the per-run process state of zinst: the append-only
// event log, the fail marker that external monitors poll, and the error
// taxonomy that decides how a run terminates.
//
// # Run shape
//
// A run is strictly sequential:
//
//	lc := lifecycle.New(lifecycle.Options{LogPath: ..., MarkerPath: ...})
//	if err := lc.Begin(); err != nil {
//	    os.Exit(lc.Fail(err))
//	}
//	lc.Info("fetching artifact", "source", src)
//	...
//	if err := step(); err != nil {
//	    os.Exit(lc.Fail(err))
//	}
//	_ = lc.Succeed()
//
// Fail is the single termination handler: it logs an ERROR line to the
// console and the log file, writes the fail marker, and returns the exit code
// derived from the error. Succeed removes the marker left by a previous failed
// run.
//
// # Error classes
//
//   - ClassEnvironment: missing privileges, unwritable log path
//   - ClassInput: missing local file, checksum or signature mismatch
//   - ClassExecution: an OS command or install step failed
//
// Soft warnings (nothing executable found in an archive, digest tool missing)
// are plain Warn events and never reach Fail.
package lifecycle
