// Package migration applies versioned SQL schema files to a database.
//
// Migration files are read from an fs.FS (usually an embed.FS owned by the
// store package) and follow the naming convention {version}_{description}.sql,
// e.g. "001_initial_schema.sql". Each file runs in its own transaction and is
// recorded in a schema_migrations table so it is never applied twice.
//
// The same manager drives SQLite and PostgreSQL; the Dialect decides how
// bind parameters are written.
//
// Example usage:
//
//	manager := migration.NewManager(
//		migration.NewFSScanner(migrationFiles, "migrations"),
//		migration.NewSQLExecutor(db, migration.SQLite),
//		logger,
//	)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
