// Package store provides a SQLite datastore that executes criteria trees as
// projected SQL and keeps a table of saved, named criteria.
//
// Filters reach the database only through the querysql projection: values
// are bound as parameters and every SELECT is ordered by rowid, so the same
// criteria over the same rows always returns the same result.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Every public operation runs inside an OpenTelemetry span taken from the
// global tracer provider unless WithTracerProvider says otherwise.
package store
