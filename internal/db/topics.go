package db

import (
	"database/sql"

	"github.com/dropline/relay-bot/internal/models"
)

// UpsertTopic configures a topic for (chatID, topicID). Configuring a
// reports topic first deactivates any prior active reports topic in the same
// chat instead of deleting it, so history stays attributable.
func (db *DB) UpsertTopic(chatID, topicID int64, kind, customLabel string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if kind == models.KindReports {
		if _, err := tx.Exec(
			`UPDATE topics SET is_active = 0 WHERE chat_id = ? AND kind = ?`,
			chatID, models.KindReports,
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM topics WHERE chat_id = ? AND topic_id = ?`, chatID, topicID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO topics (chat_id, topic_id, kind, custom_label, is_active) VALUES (?, ?, ?, ?, 1)`,
		chatID, topicID, kind, customLabel,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// ResetTopic removes a topic configuration together with its office links.
func (db *DB) ResetTopic(chatID, topicID int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM topics WHERE chat_id = ? AND topic_id = ?`, chatID, topicID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM topic_office_links WHERE topic_id = ?`, topicID); err != nil {
		return err
	}

	return tx.Commit()
}

// Topic fetches one topic configuration. Returns nil when unconfigured.
func (db *DB) Topic(chatID, topicID int64) (*models.Topic, error) {
	var t models.Topic
	err := db.conn.QueryRow(
		`SELECT chat_id, topic_id, kind, custom_label, required_count, is_active
		 FROM topics WHERE chat_id = ? AND topic_id = ?`, chatID, topicID,
	).Scan(&t.ChatID, &t.TopicID, &t.Kind, &t.CustomLabel, &t.RequiredCount, &t.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ActiveTopicsForOffice lists the active intake topics of dropsChat linked
// to the given office chat. An office may draw from several topics at once.
func (db *DB) ActiveTopicsForOffice(officeChat, dropsChat int64) ([]models.Topic, error) {
	rows, err := db.conn.Query(
		`SELECT t.chat_id, t.topic_id, t.kind, t.custom_label, t.required_count, t.is_active
		 FROM topic_office_links tol
		 JOIN topics t ON tol.topic_id = t.topic_id AND t.chat_id = ?
		 WHERE tol.office_chat_id = ? AND t.is_active = 1 AND t.kind != ?`,
		dropsChat, officeChat, models.KindReports,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []models.Topic
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ChatID, &t.TopicID, &t.Kind, &t.CustomLabel, &t.RequiredCount, &t.IsActive); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// ActiveReportsTopic returns the single active reports topic of a chat.
func (db *DB) ActiveReportsTopic(chatID int64) (int64, bool, error) {
	var topicID int64
	err := db.conn.QueryRow(
		`SELECT topic_id FROM topics WHERE chat_id = ? AND kind = ? AND is_active = 1`,
		chatID, models.KindReports,
	).Scan(&topicID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return topicID, true, nil
}

// LinkOffice links or unlinks an office chat to a topic.
func (db *DB) LinkOffice(topicID, officeChat int64, on bool) error {
	if on {
		_, err := db.conn.Exec(
			`INSERT OR IGNORE INTO topic_office_links (topic_id, office_chat_id) VALUES (?, ?)`,
			topicID, officeChat,
		)
		return err
	}
	_, err := db.conn.Exec(
		`DELETE FROM topic_office_links WHERE topic_id = ? AND office_chat_id = ?`,
		topicID, officeChat,
	)
	return err
}

// ToggleOffice flips a topic/office link and reports the new state.
func (db *DB) ToggleOffice(topicID, officeChat int64) (bool, error) {
	linked, err := db.IsLinked(topicID, officeChat)
	if err != nil {
		return false, err
	}
	if err := db.LinkOffice(topicID, officeChat, !linked); err != nil {
		return false, err
	}
	return !linked, nil
}

// IsLinked checks one topic/office link.
func (db *DB) IsLinked(topicID, officeChat int64) (bool, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM topic_office_links WHERE topic_id = ? AND office_chat_id = ?`,
		topicID, officeChat,
	).Scan(&n)
	return n > 0, err
}

// LinkedOffices lists the office chats linked to a topic.
func (db *DB) LinkedOffices(topicID int64) ([]int64, error) {
	rows, err := db.conn.Query(
		`SELECT office_chat_id FROM topic_office_links WHERE topic_id = ?`, topicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offices []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		offices = append(offices, id)
	}
	return offices, rows.Err()
}

// IncrementRequired bumps a topic's outstanding-demand counter.
func (db *DB) IncrementRequired(chatID, topicID int64) error {
	_, err := db.conn.Exec(
		`UPDATE topics SET required_count = required_count + 1 WHERE chat_id = ? AND topic_id = ?`,
		chatID, topicID,
	)
	return err
}

// DecrementRequired lowers the counter, flooring at zero.
func (db *DB) DecrementRequired(chatID, topicID int64) error {
	_, err := db.conn.Exec(
		`UPDATE topics SET required_count = MAX(required_count - 1, 0) WHERE chat_id = ? AND topic_id = ?`,
		chatID, topicID,
	)
	return err
}

// RequiredCount reads the live counter for a topic.
func (db *DB) RequiredCount(chatID, topicID int64) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT required_count FROM topics WHERE chat_id = ? AND topic_id = ?`,
		chatID, topicID,
	).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}
