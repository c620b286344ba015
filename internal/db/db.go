package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout matches how lifecycle timestamps are stored: local wall-clock
// time without zone suffix.
const timeLayout = "2006-01-02 15:04:05"

type DB struct {
	conn *sql.DB
	loc  *time.Location
}

// New opens the SQLite database and applies the schema. loc is the local
// time zone all stored timestamps are formatted in.
func New(dbPath string, loc *time.Location) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, loc: loc}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS office_chats (
		operator_id INTEGER NOT NULL,
		chat_id INTEGER NOT NULL,
		UNIQUE(operator_id, chat_id)
	);

	CREATE TABLE IF NOT EXISTS drops_chats (
		operator_id INTEGER PRIMARY KEY,
		chat_id INTEGER NOT NULL,
		intake_enabled INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS topics (
		chat_id INTEGER NOT NULL,
		topic_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		custom_label TEXT NOT NULL DEFAULT '',
		required_count INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (chat_id, topic_id)
	);

	CREATE TABLE IF NOT EXISTS topic_office_links (
		topic_id INTEGER NOT NULL,
		office_chat_id INTEGER NOT NULL,
		PRIMARY KEY (topic_id, office_chat_id)
	);

	CREATE TABLE IF NOT EXISTS requests (
		request_id INTEGER PRIMARY KEY AUTOINCREMENT,
		office_chat_id INTEGER NOT NULL,
		drops_chat_id INTEGER NOT NULL,
		anchor_message_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS phones (
		phone TEXT PRIMARY KEY,
		submission_message_id INTEGER NOT NULL DEFAULT 0,
		confirmation_message_id INTEGER NOT NULL DEFAULT 0,
		forward_chat_id INTEGER NOT NULL DEFAULT 0,
		forward_message_id INTEGER NOT NULL DEFAULT 0,
		drops_chat_id INTEGER NOT NULL DEFAULT 0,
		submitter_id INTEGER NOT NULL DEFAULT 0,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		submitted_at TEXT NOT NULL DEFAULT '',
		registered_at TEXT,
		report_message_id INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT '',
		topic_label TEXT NOT NULL DEFAULT '',
		topic_id INTEGER NOT NULL DEFAULT 0,
		topic_kind TEXT NOT NULL DEFAULT '',
		revoked_at TEXT
	);

	CREATE TABLE IF NOT EXISTS beacons (
		chat_id INTEGER NOT NULL,
		topic_id INTEGER NOT NULL,
		message_id INTEGER NOT NULL,
		PRIMARY KEY (chat_id, topic_id)
	);

	CREATE TABLE IF NOT EXISTS allowed_users (
		user_id INTEGER PRIMARY KEY
	);

	CREATE INDEX IF NOT EXISTS idx_requests_scope ON requests(drops_chat_id, status);
	CREATE INDEX IF NOT EXISTS idx_office_chats_chat ON office_chats(chat_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveBinding replaces the operator's whole binding set: every listed office
// chat plus the single drops chat. Reconfiguration is delete-all-then-insert,
// never a partial update.
func (db *DB) SaveBinding(operatorID int64, officeChats []int64, dropsChat int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM office_chats WHERE operator_id = ?`, operatorID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM drops_chats WHERE operator_id = ?`, operatorID); err != nil {
		return err
	}

	for _, chatID := range officeChats {
		if _, err := tx.Exec(
			`INSERT INTO office_chats (operator_id, chat_id) VALUES (?, ?)`,
			operatorID, chatID,
		); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO drops_chats (operator_id, chat_id) VALUES (?, ?)`,
		operatorID, dropsChat,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// OperatorBinding returns the operator's office chats and drops chat.
// dropsChat is 0 when the operator has no binding yet.
func (db *DB) OperatorBinding(operatorID int64) (officeChats []int64, dropsChat int64, err error) {
	rows, err := db.conn.Query(`SELECT chat_id FROM office_chats WHERE operator_id = ?`, operatorID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, 0, err
		}
		officeChats = append(officeChats, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	err = db.conn.QueryRow(`SELECT chat_id FROM drops_chats WHERE operator_id = ?`, operatorID).Scan(&dropsChat)
	if err == sql.ErrNoRows {
		return officeChats, 0, nil
	}
	return officeChats, dropsChat, err
}

// IsOfficeChat reports whether any operator declared the chat as an office.
func (db *DB) IsOfficeChat(chatID int64) (bool, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM office_chats WHERE chat_id = ?`, chatID).Scan(&n)
	return n > 0, err
}

// IsDropsChat reports whether any operator declared the chat as drops.
func (db *DB) IsDropsChat(chatID int64) (bool, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM drops_chats WHERE chat_id = ?`, chatID).Scan(&n)
	return n > 0, err
}

// DropsChatForOffice resolves the drops chat bound to the same operator as
// the given office chat. Returns 0 when the office is unbound.
func (db *DB) DropsChatForOffice(officeChat int64) (int64, error) {
	var dropsChat int64
	err := db.conn.QueryRow(
		`SELECT dc.chat_id
		 FROM drops_chats dc
		 JOIN office_chats oc ON dc.operator_id = oc.operator_id
		 WHERE oc.chat_id = ?`, officeChat,
	).Scan(&dropsChat)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return dropsChat, err
}

// OfficeChatsForDrops resolves every office chat bound to the same operator
// as the given drops chat.
func (db *DB) OfficeChatsForDrops(dropsChat int64) ([]int64, error) {
	rows, err := db.conn.Query(
		`SELECT oc.chat_id
		 FROM office_chats oc
		 JOIN drops_chats dc ON oc.operator_id = dc.operator_id
		 WHERE dc.chat_id = ?`, dropsChat,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		chats = append(chats, id)
	}
	return chats, rows.Err()
}

// AllOfficeChats lists every known office chat across operators.
func (db *DB) AllOfficeChats() ([]int64, error) {
	rows, err := db.conn.Query(`SELECT chat_id FROM office_chats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		chats = append(chats, id)
	}
	return chats, rows.Err()
}

// SetIntakeEnabled persists the per-drops-chat intake switch.
func (db *DB) SetIntakeEnabled(dropsChat int64, enabled bool) error {
	_, err := db.conn.Exec(
		`UPDATE drops_chats SET intake_enabled = ? WHERE chat_id = ?`,
		enabled, dropsChat,
	)
	return err
}

// IntakeEnabled reads the intake switch. An unconfigured chat defaults to enabled.
func (db *DB) IntakeEnabled(dropsChat int64) (bool, error) {
	var enabled bool
	err := db.conn.QueryRow(
		`SELECT intake_enabled FROM drops_chats WHERE chat_id = ?`, dropsChat,
	).Scan(&enabled)
	if err == sql.ErrNoRows {
		return true, nil
	}
	return enabled, err
}

// AllowUser adds a user to the operator allow-list.
func (db *DB) AllowUser(userID int64) error {
	_, err := db.conn.Exec(`INSERT OR IGNORE INTO allowed_users (user_id) VALUES (?)`, userID)
	return err
}

// DisallowUser removes a user from the allow-list. Returns false when the
// user was not listed.
func (db *DB) DisallowUser(userID int64) (bool, error) {
	result, err := db.conn.Exec(`DELETE FROM allowed_users WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

// IsAllowedUser checks the operator allow-list.
func (db *DB) IsAllowedUser(userID int64) (bool, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM allowed_users WHERE user_id = ?`, userID).Scan(&n)
	return n > 0, err
}

// WipeAll clears every durable table except the operator allow-list, so the
// operator who ordered the wipe can still reconfigure the bot afterwards.
func (db *DB) WipeAll() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{
		"beacons", "phones", "requests", "topic_office_links",
		"topics", "drops_chats", "office_chats",
	} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Location returns the time zone timestamps are stored in.
func (db *DB) Location() *time.Location {
	return db.loc
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
