// Package archive selects a tick archive backend from the environment.
package archive

import (
	"fmt"
	"os"

	"cladecore/internal/core"
	"cladecore/internal/infra/archive/memory"
	"cladecore/internal/infra/archive/postgres"
	"cladecore/internal/infra/archive/sqlite"
)

// Driver identifies a concrete archive implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Open selects a backend using environment variables. Defaults to sqlite
// when unset.
//
//	CLADECORE_ARCHIVE_DRIVER: memory|sqlite|postgres (default sqlite)
//	CLADECORE_SQLITE_PATH: path to sqlite file (default ./cladecore.db)
//	CLADECORE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open() (core.Archive, error) {
	driver := os.Getenv("CLADECORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		path := os.Getenv("CLADECORE_SQLITE_PATH")
		return sqlite.NewStore(path)
	case DriverPostgres:
		dsn := os.Getenv("CLADECORE_POSTGRES_DSN")
		return postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
