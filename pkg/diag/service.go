// Package diag persists cycle history and the cumulative counters
// (read-loop count, send-failure count) that survive across reboots, the
// way the teacher's meter database persists readings.
package diag

import (
	"database/sql"
	"embed"
	"sync"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/pathing"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

var (
	db   *sql.DB
	once sync.Once
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// InitializeDatabase must be called once on startup before any access
// function is used.
func InitializeDatabase() {
	db := GetDB()
	if _, err := db.Exec("SELECT 1;"); err != nil {
		logrus.WithError(err).Warn("could not create diagnostics DB")
	}

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)
}

func GetDB() *sql.DB {
	once.Do(func() {
		var err error
		db, err = sql.Open("sqlite", pathing.GetDiagDbPath())
		if err != nil {
			logrus.Fatal(err)
		}
		if err = db.Ping(); err != nil {
			logrus.Fatal(err)
		}
	})
	return db
}
