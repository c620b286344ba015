package db

import (
	"database/sql"
	"time"

	"github.com/dropline/relay-bot/internal/models"
)

const phoneColumns = `phone, submission_message_id, confirmation_message_id,
	forward_chat_id, forward_message_id, drops_chat_id, submitter_id,
	username, first_name, last_name, submitted_at, registered_at,
	report_message_id, status, topic_label, topic_id, topic_kind, revoked_at`

// UpsertPhone creates or overwrites the phone's record. Phone is the sole
// key: a resubmission starts a fresh cycle over the old row.
func (db *DB) UpsertPhone(rec models.PhoneRecord) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO phones (`+phoneColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Phone, rec.SubmissionRef.MessageID, rec.ConfirmRef.MessageID,
		rec.ForwardRef.ChatID, rec.ForwardRef.MessageID, rec.DropsChat, rec.SubmitterID,
		rec.Username, rec.FirstName, rec.LastName,
		rec.SubmittedAt.Format(timeLayout), db.formatNullable(rec.RegisteredAt),
		rec.ReportRef.MessageID, rec.Status, rec.TopicLabel, rec.TopicID, rec.TopicKind,
		db.formatNullable(rec.RevokedAt),
	)
	return err
}

// Phone fetches the record for a number. Returns nil when unknown.
func (db *DB) Phone(phone string) (*models.PhoneRecord, error) {
	row := db.conn.QueryRow(`SELECT `+phoneColumns+` FROM phones WHERE phone = ?`, phone)
	return db.scanPhone(row)
}

// PhoneByForwardRef finds the record whose office-side forward message is
// the given one. Button presses and photo replies resolve through this.
func (db *DB) PhoneByForwardRef(chatID int64, messageID int) (*models.PhoneRecord, error) {
	row := db.conn.QueryRow(
		`SELECT `+phoneColumns+` FROM phones WHERE forward_chat_id = ? AND forward_message_id = ?`,
		chatID, messageID,
	)
	return db.scanPhone(row)
}

// SetPhoneStatus writes a bare status transition.
func (db *DB) SetPhoneStatus(phone string, status models.PhoneStatus) error {
	_, err := db.conn.Exec(`UPDATE phones SET status = ? WHERE phone = ?`, status, phone)
	return err
}

// SetRegistered stamps the registration time and moves to registered.
func (db *DB) SetRegistered(phone string, at time.Time) error {
	_, err := db.conn.Exec(
		`UPDATE phones SET status = ?, registered_at = ? WHERE phone = ?`,
		models.StatusRegistered, at.In(db.loc).Format(timeLayout), phone,
	)
	return err
}

// SetRevoked stamps the revocation time and moves to revoked.
func (db *DB) SetRevoked(phone string, at time.Time) error {
	_, err := db.conn.Exec(
		`UPDATE phones SET status = ?, revoked_at = ? WHERE phone = ?`,
		models.StatusRevoked, at.In(db.loc).Format(timeLayout), phone,
	)
	return err
}

// SetReportRef records (or re-anchors) the phone's report line message.
func (db *DB) SetReportRef(phone string, messageID int) error {
	_, err := db.conn.Exec(`UPDATE phones SET report_message_id = ? WHERE phone = ?`, messageID, phone)
	return err
}

// SetForwardRef records the office-side forward message for the phone.
func (db *DB) SetForwardRef(phone string, ref models.MessageRef) error {
	_, err := db.conn.Exec(
		`UPDATE phones SET forward_chat_id = ?, forward_message_id = ? WHERE phone = ?`,
		ref.ChatID, ref.MessageID, phone,
	)
	return err
}

// RegisteredOn lists records registered on the given local date, ordered by
// registration time. The daily digest reads through this.
func (db *DB) RegisteredOn(day time.Time) ([]models.PhoneRecord, error) {
	prefix := day.In(db.loc).Format("2006-01-02") + "%"
	rows, err := db.conn.Query(
		`SELECT `+phoneColumns+` FROM phones
		 WHERE registered_at IS NOT NULL AND registered_at LIKE ?
		 ORDER BY registered_at ASC`, prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PhoneRecord
	for rows.Next() {
		rec, err := db.scanPhoneRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanPhone(row *sql.Row) (*models.PhoneRecord, error) {
	rec, err := db.scanPhoneRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (db *DB) scanPhoneRow(row rowScanner) (*models.PhoneRecord, error) {
	var rec models.PhoneRecord
	var submittedAt string
	var registeredAt, revokedAt sql.NullString

	err := row.Scan(
		&rec.Phone, &rec.SubmissionRef.MessageID, &rec.ConfirmRef.MessageID,
		&rec.ForwardRef.ChatID, &rec.ForwardRef.MessageID, &rec.DropsChat, &rec.SubmitterID,
		&rec.Username, &rec.FirstName, &rec.LastName, &submittedAt, &registeredAt,
		&rec.ReportRef.MessageID, &rec.Status, &rec.TopicLabel, &rec.TopicID, &rec.TopicKind,
		&revokedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.SubmissionRef.ChatID = rec.DropsChat
	rec.ConfirmRef.ChatID = rec.DropsChat
	rec.ReportRef.ChatID = rec.DropsChat

	if submittedAt != "" {
		if t, err := time.ParseInLocation(timeLayout, submittedAt, db.loc); err == nil {
			rec.SubmittedAt = t
		}
	}
	if registeredAt.Valid && registeredAt.String != "" {
		if t, err := time.ParseInLocation(timeLayout, registeredAt.String, db.loc); err == nil {
			rec.RegisteredAt = &t
		}
	}
	if revokedAt.Valid && revokedAt.String != "" {
		if t, err := time.ParseInLocation(timeLayout, revokedAt.String, db.loc); err == nil {
			rec.RevokedAt = &t
		}
	}

	return &rec, nil
}

func (db *DB) formatNullable(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.In(db.loc).Format(timeLayout)
}
