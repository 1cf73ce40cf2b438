package db

import (
	"database/sql"
)

// Database is a connectable store backing the archive index
type Database interface {
	Connect() error
	Close() error
	DB() *sql.DB
}
