package db

import (
	"database/sql"

	"github.com/dropline/relay-bot/internal/models"
)

// Beacon returns the live outstanding-demand message of (chat, topic),
// or nil when none is recorded.
func (db *DB) Beacon(chatID, topicID int64) (*models.Beacon, error) {
	var b models.Beacon
	err := db.conn.QueryRow(
		`SELECT chat_id, topic_id, message_id FROM beacons WHERE chat_id = ? AND topic_id = ?`,
		chatID, topicID,
	).Scan(&b.ChatID, &b.TopicID, &b.MessageID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SaveBeacon records the new beacon message, replacing any prior one.
func (db *DB) SaveBeacon(chatID, topicID int64, messageID int) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO beacons (chat_id, topic_id, message_id) VALUES (?, ?, ?)`,
		chatID, topicID, messageID,
	)
	return err
}

// DeleteBeacon forgets the recorded beacon for (chat, topic).
func (db *DB) DeleteBeacon(chatID, topicID int64) error {
	_, err := db.conn.Exec(
		`DELETE FROM beacons WHERE chat_id = ? AND topic_id = ?`,
		chatID, topicID,
	)
	return err
}
