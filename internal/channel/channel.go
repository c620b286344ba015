// Package channel is the chat-platform boundary: sending, editing, and
// deleting messages plus role queries, with platform failures folded into a
// small taxonomy the core can act on.
package channel

import (
	"errors"

	"github.com/dropline/relay-bot/internal/models"
)

// Failure taxonomy. NotFound and Unchanged are transient: the target message
// is already gone or the edit is a no-op, recovered locally. Forbidden is
// permanent for the attempted operation.
var (
	ErrNotFound  = errors.New("channel: message not found")
	ErrUnchanged = errors.New("channel: message not modified")
	ErrForbidden = errors.New("channel: forbidden")
)

// IsTransient reports whether the failure is recoverable locally and must
// not be surfaced to the operator.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnchanged)
}

// Button is one inline button; Data carries an encoded action descriptor.
type Button struct {
	Text string
	Data string
}

// Keyboard is rows of inline buttons.
type Keyboard [][]Button

// Row builds a single keyboard row.
func Row(buttons ...Button) []Button { return buttons }

// SendOptions describes one outbound message.
type SendOptions struct {
	ChatID   int64
	TopicID  int64 // thread id, 0 for the general topic
	Text     string
	ReplyTo  int // message id to reply to, 0 for none
	Keyboard Keyboard
}

// PhotoOptions describes one relayed photo, referenced by platform file id.
type PhotoOptions struct {
	ChatID  int64
	TopicID int64
	FileID  string
	Caption string
	ReplyTo int
}

// Channel is everything the core needs from the chat platform.
type Channel interface {
	Send(opts SendOptions) (models.MessageRef, error)
	SendPhoto(opts PhotoOptions) (models.MessageRef, error)
	Edit(ref models.MessageRef, text string, keyboard Keyboard) error
	Delete(ref models.MessageRef) error
	IsAdmin(chatID, userID int64) (bool, error)
}
