// Package digest emits the once-daily summary of completed registrations.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dropline/relay-bot/internal/channel"
	"github.com/dropline/relay-bot/internal/db"
	"github.com/dropline/relay-bot/internal/models"
	"github.com/dropline/relay-bot/internal/telemetry"
)

// retryDelay spaces retries after a failed run so the loop never spins.
const retryDelay = time.Minute

// Scheduler wakes at a fixed local wall-clock time each day and sends the
// day's registration summary to a fixed recipient.
type Scheduler struct {
	store       *db.DB
	ch          channel.Channel
	loc         *time.Location
	fireAt      string // "HH:MM"
	recipientID int64
	log         zerolog.Logger

	clock func() time.Time // test seam; nil means time.Now
}

func New(store *db.DB, ch channel.Channel, loc *time.Location, fireAt string, recipientID int64, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:       store,
		ch:          ch,
		loc:         loc,
		fireAt:      fireAt,
		recipientID: recipientID,
		log:         log,
	}
}

// Run loops until ctx is cancelled. Failures are logged and rescheduled
// with a short backoff; the loop never terminates the process.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		delay, err := s.untilNextFire()
		if err != nil {
			s.log.Error().Err(err).Str("report_time", s.fireAt).Msg("bad digest schedule")
			delay = retryDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info().Msg("digest scheduler stopped")
			return
		case <-timer.C:
		}

		if err := s.SendDigest(); err != nil {
			s.log.Error().Err(err).Msg("daily digest failed")
			telemetry.DigestRuns.WithLabelValues("error").Inc()
			// Reschedule from now plus a short backoff so a failure close to
			// the fire time does not double-send.
			timer = time.NewTimer(retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}
		telemetry.DigestRuns.WithLabelValues("ok").Inc()
	}
}

// untilNextFire computes the duration to the next occurrence of the
// configured wall-clock time, rolling to tomorrow when already past.
func (s *Scheduler) untilNextFire() (time.Duration, error) {
	target, err := NextFire(s.now(), s.fireAt, s.loc)
	if err != nil {
		return 0, err
	}
	return target.Sub(s.now()), nil
}

// NextFire returns the next occurrence of hhmm ("HH:MM") in loc after now.
func NextFire(now time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse report time %q: %w", hhmm, err)
	}
	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	if !target.After(local) {
		target = target.AddDate(0, 0, 1)
	}
	return target, nil
}

// SendDigest aggregates today's registrations grouped by drops chat and
// topic, and delivers one summary message.
func (s *Scheduler) SendDigest() error {
	today := s.now()
	records, err := s.store.RegisteredOn(today)
	if err != nil {
		return fmt.Errorf("aggregate registrations: %w", err)
	}

	text := BuildDigest(today, records)
	if _, err := s.ch.Send(channel.SendOptions{ChatID: s.recipientID, Text: text}); err != nil {
		return fmt.Errorf("deliver digest: %w", err)
	}

	s.log.Info().Int("registrations", len(records)).Msg("daily digest sent")
	return nil
}

// BuildDigest renders the summary text for one day's records.
func BuildDigest(day time.Time, records []models.PhoneRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 Daily summary for %s:\n\n", day.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("📈 Numbers registered: %d\n", len(records)))

	if len(records) == 0 {
		return sb.String()
	}

	// Group by drops chat, keeping first-seen order inside each group.
	order := make([]int64, 0)
	byChat := make(map[int64][]models.PhoneRecord)
	for _, rec := range records {
		if _, seen := byChat[rec.DropsChat]; !seen {
			order = append(order, rec.DropsChat)
		}
		byChat[rec.DropsChat] = append(byChat[rec.DropsChat], rec)
	}

	for _, chatID := range order {
		group := byChat[chatID]
		sb.WriteString(fmt.Sprintf("\n💬 Chat %d (%d):\n", chatID, len(group)))
		for _, rec := range group {
			when := ""
			if rec.RegisteredAt != nil {
				when = rec.RegisteredAt.Format("15:04")
			}
			line := fmt.Sprintf("%s %s %s | %s", rec.Phone, when, rec.Mention(), rec.TopicLabel)
			if rec.RevokedAt != nil {
				line += " 🔴"
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}

func (s *Scheduler) now() time.Time {
	if s.clock != nil {
		return s.clock().In(s.loc)
	}
	return time.Now().In(s.loc)
}
