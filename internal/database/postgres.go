package database

import (
	"database/sql"
)

type PgLedgerRepository struct {
	conn *sql.DB
}

func NewPgLedgerRepository(dsn string) (*PgLedgerRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgLedgerRepository{conn: db}, nil
}

func (db *PgLedgerRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgLedgerRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
