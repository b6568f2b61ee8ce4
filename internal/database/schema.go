package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// schema holds the DDL for every table, in dependency order.  Statements
// are idempotent so EnsureSchema can run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            CHAR(36)     NOT NULL,
		email         VARCHAR(255) NULL,
		phone_number  VARCHAR(32)  NULL,
		provider      VARCHAR(32)  NOT NULL DEFAULT 'local',
		provider_id   VARCHAR(255) NULL,
		password_hash VARCHAR(255) NULL,
		is_verified   TINYINT(1)   NOT NULL DEFAULT 0,
		verified_at   DATETIME     NULL,
		is_active     TINYINT(1)   NOT NULL DEFAULT 1,
		is_suspended  TINYINT(1)   NOT NULL DEFAULT 0,
		is_admin      TINYINT(1)   NOT NULL DEFAULT 0,
		plan          VARCHAR(32)  NOT NULL DEFAULT 'free',
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		last_login    DATETIME     NULL,
		deleted_at    DATETIME     NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_email (email),
		UNIQUE KEY uq_users_phone (phone_number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id         CHAR(36)     NOT NULL,
		user_id    CHAR(36)     NOT NULL,
		title      VARCHAR(255) NULL,
		status     VARCHAR(32)  NULL,
		created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_conversations_user (user_id),
		CONSTRAINT fk_conversations_user FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS messages (
		id              CHAR(36)    NOT NULL,
		conversation_id CHAR(36)    NOT NULL,
		user_id         CHAR(36)    NULL,
		content         JSON        NOT NULL,
		message_type    VARCHAR(16) NOT NULL DEFAULT 'text',
		metadata        JSON        NULL,
		created_at      DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_messages_conversation (conversation_id),
		CONSTRAINT fk_messages_conversation FOREIGN KEY (conversation_id) REFERENCES conversations (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS usage_records (
		id              CHAR(36) NOT NULL,
		user_id         CHAR(36) NOT NULL,
		usage_date      DATE     NOT NULL,
		message_count   INT      NOT NULL DEFAULT 0,
		token_count     INT      NULL,
		file_uploads    INT      NULL,
		last_updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_usage_user_date (user_id, usage_date),
		CONSTRAINT fk_usage_user FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS uploads (
		id           CHAR(36)     NOT NULL,
		user_id      CHAR(36)     NOT NULL,
		bucket       VARCHAR(64)  NOT NULL,
		object_key   VARCHAR(512) NOT NULL,
		content_type VARCHAR(128) NULL,
		size         BIGINT       NOT NULL,
		created_at   DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_uploads_user (user_id),
		CONSTRAINT fk_uploads_user FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates any missing tables.  It runs on startup so a fresh
// database is usable without a separate migration step.
func EnsureSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
