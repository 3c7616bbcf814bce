package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the three tables owned by the reservation core. Statements
// are idempotent so Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reservations (
		id                    CHAR(36)        NOT NULL,
		user_id               BIGINT UNSIGNED NOT NULL DEFAULT 0,
		customer_name         VARCHAR(120)    NOT NULL,
		customer_phone        VARCHAR(32)     NULL,
		customer_email        VARCHAR(255)    NULL,
		restaurant_id         BIGINT UNSIGNED NOT NULL,
		table_id              BIGINT UNSIGNED NULL,
		start_time            DATETIME        NOT NULL,
		duration_minutes      INT             NOT NULL,
		party_size            INT             NOT NULL,
		status                ENUM('PENDING','CONFIRMED','CANCELLED','COMPLETED','NO_SHOW') NOT NULL,
		confirmation_deadline DATETIME        NOT NULL,
		cancellation_reason   VARCHAR(255)    NULL,
		special_requests      TEXT            NULL,
		reminder_sent         TINYINT(1)      NOT NULL DEFAULT 0,
		created_at            DATETIME        NOT NULL,
		updated_at            DATETIME        NOT NULL,
		confirmed_at          DATETIME        NULL,
		cancelled_at          DATETIME        NULL,
		completed_at          DATETIME        NULL,
		PRIMARY KEY (id),
		KEY idx_reservations_status_deadline (status, confirmation_deadline),
		KEY idx_reservations_status_start (status, start_time),
		KEY idx_reservations_restaurant_start (restaurant_id, start_time),
		KEY idx_reservations_user (user_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservation_history (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		reservation_id CHAR(36)        NOT NULL,
		action         VARCHAR(16)     NOT NULL,
		detail         VARCHAR(512)    NOT NULL DEFAULT '',
		actor          VARCHAR(64)     NOT NULL,
		created_at     DATETIME(6)     NOT NULL,
		PRIMARY KEY (id),
		KEY idx_history_reservation (reservation_id, id),
		CONSTRAINT fk_history_reservation FOREIGN KEY (reservation_id) REFERENCES reservations (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservation_quotas (
		id                   BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		restaurant_id        BIGINT UNSIGNED NOT NULL,
		quota_date           DATE            NOT NULL,
		time_slot            CHAR(5)         NOT NULL,
		max_reservations     INT             NOT NULL,
		current_reservations INT             NOT NULL DEFAULT 0,
		max_capacity         INT             NOT NULL,
		current_capacity     INT             NOT NULL DEFAULT 0,
		threshold_percentage INT             NULL,
		created_at           DATETIME        NOT NULL,
		updated_at           DATETIME        NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_quota_slot (restaurant_id, quota_date, time_slot)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
