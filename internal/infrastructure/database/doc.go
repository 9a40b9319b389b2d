// Package database provides the SQLite durable store for Greenhouse Core.
//
// SQLite holds everything that must survive a restart: pump state snapshots,
// irrigation schedules, decision history, and irrigation events. The fast
// cache (internal/infrastructure/cache) mirrors current state for other
// processes; SQLite remains the unbounded durable record.
//
// Migrations are embedded into the binary via the migrations package and
// applied at startup. Each migration runs in its own transaction.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
