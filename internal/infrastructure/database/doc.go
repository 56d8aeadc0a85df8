// Package database provides the SQLite connection behind the device directory
// and scene store.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Embedded, versioned schema migrations (YYYYMMDD_HHMMSS_name.up.sql / .down.sql)
//   - Health checks for the ops endpoint
//
// All queries elsewhere in the module use parameterised statements.
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
