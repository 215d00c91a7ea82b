// Package migration applies versioned schema changes to SQLite databases.
//
// Migrations are SQL files named {version}_{description}.sql read from an
// fs.FS, usually an embedded directory. Each file runs inside a transaction
// and successful versions are recorded in the schema_migrations table so that
// reruns only apply what is pending.
//
// Example usage:
//
//	manager := NewManager(NewFSScanner(files, "migrations"), NewSQLiteExecutor(db), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
