package models

import "time"

// PhoneStatus tracks a phone number's registration lifecycle.
type PhoneStatus string

const (
	StatusSubmitted  PhoneStatus = "submitted"
	StatusForwarded  PhoneStatus = "forwarded"
	StatusRegistered PhoneStatus = "registered"
	StatusRejected   PhoneStatus = "rejected"
	StatusRevoked    PhoneStatus = "revoked"
)

// RequestStatus is the state of a pending number request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestFulfilled RequestStatus = "fulfilled"
)

// Topic kinds. Ratio kinds label intake topics by their payout scheme;
// KindReports marks the single reports topic of a drops chat.
const (
	KindRatio1x8   = "1/8"
	KindRatio1x16  = "1/16"
	KindRatio7x1   = "7/1"
	KindRatio20x25 = "20-25"
	KindReports    = "reports"
)

// RatioKinds lists the intake topic kinds selectable from the settings menu.
var RatioKinds = []string{KindRatio1x8, KindRatio1x16, KindRatio7x1, KindRatio20x25}

// IsIntakeKind reports whether a topic kind accepts phone submissions.
func IsIntakeKind(kind string) bool {
	return kind != "" && kind != KindReports
}

// MessageRef identifies a previously sent chat message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Zero reports whether the ref points at nothing.
func (r MessageRef) Zero() bool { return r.MessageID == 0 }

// Topic is a threaded subdivision of a drops chat with its own demand counter.
type Topic struct {
	ChatID        int64
	TopicID       int64
	Kind          string
	CustomLabel   string
	RequiredCount int
	IsActive      bool
}

// Label returns the display name for the topic.
func (t Topic) Label() string {
	if t.CustomLabel != "" {
		return t.CustomLabel
	}
	if t.Kind != "" {
		return t.Kind
	}
	return "untitled"
}

// PendingRequest is one "please supply a number" slot scoped to an
// office/drops pair. Matching is strict FIFO on ID.
type PendingRequest struct {
	ID          int64
	OfficeChat  int64
	DropsChat   int64
	AnchorMsgID int
	Status      RequestStatus
}

// PhoneRecord is the audit row for one phone number's registration cycle.
// Keyed by phone: a resubmission overwrites the prior cycle.
type PhoneRecord struct {
	Phone         string
	SubmissionRef MessageRef
	ConfirmRef    MessageRef
	ForwardRef    MessageRef
	DropsChat     int64
	SubmitterID   int64
	Username      string
	FirstName     string
	LastName      string
	SubmittedAt   time.Time
	RegisteredAt  *time.Time
	ReportRef     MessageRef
	Status        PhoneStatus
	TopicLabel    string
	TopicID       int64
	TopicKind     string
	RevokedAt     *time.Time
}

// Mention renders the submitter the way report lines show them.
func (p PhoneRecord) Mention() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	if p.FirstName != "" {
		name := p.FirstName
		if p.LastName != "" {
			name += " " + p.LastName
		}
		return name
	}
	return "unknown"
}

// Beacon is the single live outstanding-demand message of a (chat, topic).
type Beacon struct {
	ChatID    int64
	TopicID   int64
	MessageID int
}
