package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            avatar TEXT NOT NULL DEFAULT '/uploads/u3.png',
            last_seen TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS groups (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            creator_id INT NOT NULL,
            avatar TEXT NOT NULL DEFAULT '/uploads/pic1.webp',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS group_members (
            group_id INT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            PRIMARY KEY(group_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS group_unread (
            group_id INT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            unread INT NOT NULL DEFAULT 0,
            PRIMARY KEY(group_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL,
            receiver_id INT,
            group_id INT REFERENCES groups(id) ON DELETE CASCADE,
            text TEXT NOT NULL DEFAULT '',
            image TEXT NOT NULL DEFAULT '',
            is_delivered BOOLEAN NOT NULL DEFAULT FALSE,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK ((receiver_id IS NULL) <> (group_id IS NULL))
        );`,
		`CREATE TABLE IF NOT EXISTS message_reads (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            PRIMARY KEY(message_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver_undelivered
            ON messages (receiver_id) WHERE is_delivered = FALSE;`,
		`CREATE INDEX IF NOT EXISTS idx_messages_group ON messages (group_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (sender_id, receiver_id);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
