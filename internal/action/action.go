// Package action encodes inline-button payloads as versioned descriptors.
// A button carries the descriptor opaquely; the boundary decodes it exactly
// once and nothing is ever re-derived from display text.
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags what a button press means.
type Kind string

const (
	DecideOK      Kind = "ok"   // registration succeeded
	DecideFail    Kind = "fail" // registration failed
	DecideRepeat  Kind = "rep"  // ask the drop for a fresh code
	Revoke        Kind = "slet" // flag a finished registration as revoked
	RequestNumber Kind = "req"  // enqueue another number request
	TopicMenu     Kind = "menu" // open one topic-kind submenu
	Configure     Kind = "cfg"  // open the office link editor
	ToggleOffice  Kind = "tgl"  // flip one topic/office link
	SelectTopic   Kind = "sel"  // activate a topic with the chosen kind
	ResetTopic    Kind = "rst"  // drop a topic configuration
	SetReports    Kind = "rpt"  // mark the topic as the reports topic
	Back          Kind = "back" // return to the settings root
	WipeData      Kind = "wipe" // confirm clearing the database
	KeepData      Kind = "keep" // abort the database wipe
)

// Action is the structured payload behind an inline button.
type Action struct {
	Kind      Kind
	Phone     string // decide/revoke targets
	TopicKind string // settings flows
	TopicID   int64
	OfficeID  int64
}

const version = "1"

var ErrMalformed = errors.New("malformed action payload")

// Encode renders the descriptor as callback data. The flat pipe layout keeps
// every descriptor inside Telegram's 64-byte callback budget.
func (a Action) Encode() string {
	return strings.Join([]string{
		version,
		string(a.Kind),
		a.Phone,
		a.TopicKind,
		encodeID(a.TopicID),
		encodeID(a.OfficeID),
	}, "|")
}

// Decode parses callback data produced by Encode.
func Decode(data string) (Action, error) {
	parts := strings.Split(data, "|")
	if len(parts) != 6 {
		return Action{}, fmt.Errorf("%w: %q", ErrMalformed, data)
	}
	if parts[0] != version {
		return Action{}, fmt.Errorf("%w: unsupported version %q", ErrMalformed, parts[0])
	}
	if parts[1] == "" {
		return Action{}, fmt.Errorf("%w: empty kind", ErrMalformed)
	}

	topicID, err := decodeID(parts[4])
	if err != nil {
		return Action{}, fmt.Errorf("%w: topic id %q", ErrMalformed, parts[4])
	}
	officeID, err := decodeID(parts[5])
	if err != nil {
		return Action{}, fmt.Errorf("%w: office id %q", ErrMalformed, parts[5])
	}

	return Action{
		Kind:      Kind(parts[1]),
		Phone:     parts[2],
		TopicKind: parts[3],
		TopicID:   topicID,
		OfficeID:  officeID,
	}, nil
}

func encodeID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func decodeID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
