// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package migration manages the journeys schema with golang-migrate.

Migration files are embedded per dialect (postgres, mysql, sqlite) and applied
through a DefaultMigrator, which takes its *sql.DB from internal/database so
that the migrator and the SQL journey store share the same drivers. CLI wraps a
Migrator with human readable output for the `migrate` command.
*/
package migration
