package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Schema creates the audit table. Applied at startup; safe to re-run.
const Schema = `
CREATE TABLE IF NOT EXISTS relay_logs (
	id            SERIAL PRIMARY KEY,
	timestamp     TIMESTAMPTZ NOT NULL,
	client_ip     VARCHAR(45) NOT NULL,
	method        VARCHAR(10) NOT NULL,
	url           TEXT NOT NULL,
	status_code   INTEGER NOT NULL,
	response_time DOUBLE PRECISION NOT NULL,
	response_size INTEGER NOT NULL,
	user_agent    TEXT NOT NULL,
	referer       TEXT,
	error_message TEXT
)`

// PostgresSink appends audit records to a Postgres table.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens the database and verifies the connection.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// EnsureSchema applies the audit table schema.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply audit schema: %w", err)
	}
	return nil
}

// Write inserts one record.
func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	const insert = `
		INSERT INTO relay_logs
			(timestamp, client_ip, method, url, status_code, response_time, response_size, user_agent, referer, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var referer sql.NullString
	if rec.Referer != "" {
		referer = sql.NullString{String: rec.Referer, Valid: true}
	}
	var errorMessage sql.NullString
	if rec.ErrorMessage != nil {
		errorMessage = sql.NullString{String: *rec.ErrorMessage, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, insert,
		rec.Timestamp, rec.ClientIP, rec.Method, rec.URL, rec.StatusCode,
		rec.ResponseTime, rec.ResponseSize, rec.UserAgent, referer, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
