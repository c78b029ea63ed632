package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the claims table when it does not exist yet.  The
// PRIMARY KEY on cell_id is load-bearing: it is the uniqueness constraint
// that arbitrates concurrent reservation attempts for the same cell, so the
// service must never run against a schema without it.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `CREATE TABLE IF NOT EXISTS claims (
		cell_id                CHAR(3)      NOT NULL,
		color_value            CHAR(7)      NOT NULL,
		owner_fingerprint      VARCHAR(128) NOT NULL,
		payment_transaction_id VARCHAR(191) NOT NULL,
		confirmed_payment_id   VARCHAR(191) NULL,
		amount_cents           INT UNSIGNED NOT NULL,
		payment_status         ENUM('PENDING','COMPLETED') NOT NULL DEFAULT 'PENDING',
		reserved_at            DATETIME NULL,
		reserved_until         DATETIME NULL,
		claimed_at             DATETIME NULL,
		custom_color_name      VARCHAR(100) NULL,
		owner_display_name     VARCHAR(100) NULL,
		blurb                  VARCHAR(280) NULL,
		personalized_at        DATETIME NULL,
		created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (cell_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	_, err := db.ExecContext(ctx, ddl)
	return err
}
