package db

import (
	"database/sql"
	"strings"

	"github.com/dropline/relay-bot/internal/models"
)

// EnqueueRequest inserts a pending number request and returns its id.
// Request ids are monotonic; FIFO matching keys on them.
func (db *DB) EnqueueRequest(officeChat, dropsChat int64, anchorMsgID int) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO requests (office_chat_id, drops_chat_id, anchor_message_id, status)
		 VALUES (?, ?, ?, ?)`,
		officeChat, dropsChat, anchorMsgID, models.RequestPending,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// MatchRequest returns the oldest pending request for dropsChat whose office
// is in the given set, or nil when no such request exists. Earlier requests
// from unlinked offices are skipped, never returned.
func (db *DB) MatchRequest(dropsChat int64, offices []int64) (*models.PendingRequest, error) {
	if len(offices) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(offices)), ",")
	args := make([]interface{}, 0, len(offices)+2)
	args = append(args, models.RequestPending, dropsChat)
	for _, office := range offices {
		args = append(args, office)
	}

	var req models.PendingRequest
	err := db.conn.QueryRow(
		`SELECT request_id, office_chat_id, drops_chat_id, anchor_message_id, status
		 FROM requests
		 WHERE status = ? AND drops_chat_id = ? AND office_chat_id IN (`+placeholders+`)
		 ORDER BY request_id ASC
		 LIMIT 1`, args...,
	).Scan(&req.ID, &req.OfficeChat, &req.DropsChat, &req.AnchorMsgID, &req.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FulfillRequest marks a request consumed. Idempotent: fulfilling an
// already-fulfilled request is a no-op.
func (db *DB) FulfillRequest(requestID int64) error {
	_, err := db.conn.Exec(
		`UPDATE requests SET status = ? WHERE request_id = ?`,
		models.RequestFulfilled, requestID,
	)
	return err
}

// DeleteRequestsByAnchor removes every request anchored to a vanished
// message and reports how many were dropped. Only error recovery does this:
// a request whose anchor message is gone can never be fulfilled again.
func (db *DB) DeleteRequestsByAnchor(anchorMsgID int) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM requests WHERE anchor_message_id = ?`, anchorMsgID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PendingCount counts every pending request scoped to a drops chat.
func (db *DB) PendingCount(dropsChat int64) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM requests WHERE status = ? AND drops_chat_id = ?`,
		models.RequestPending, dropsChat,
	).Scan(&n)
	return n, err
}
