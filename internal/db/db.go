package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Handle struct {
	DB      *gorm.DB
	Dialect string
}

// Open connects to the catalog store. The dialect comes from configuration:
// sqlite (default, DSN is a file path or ":memory:"), postgres or mysql.
func Open(dialect, dsn string) (*Handle, error) {
	var dial gorm.Dialector
	switch dialect {
	case "", "sqlite":
		dialect = "sqlite"
		dial = sqlite.Open(dsn)
	case "postgres":
		dial = postgres.Open(dsn)
	case "mysql":
		dial = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown store dialect %q", dialect)
	}

	gdb, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", dialect, err)
	}
	return &Handle{DB: gdb, Dialect: dialect}, nil
}
