package service

import (
	"errors"
	"fmt"

	"github.com/dropline/relay-bot/internal/channel"
	"github.com/dropline/relay-bot/internal/models"
	"github.com/dropline/relay-bot/internal/telemetry"
)

// Outcome is the operator's verdict on a forwarded number.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeFail   Outcome = "fail"
	OutcomeRepeat Outcome = "repeat"
)

// Decide applies an outcome decision. Only a number in the forwarded state
// can be decided; repeat loops back to forwarded with a fresh code prompt.
func (s *Service) Decide(number string, outcome Outcome) error {
	rec, err := s.store.Phone(number)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrUnknownPhone
	}
	if rec.Status != models.StatusForwarded {
		return fmt.Errorf("%w: %s is %s", ErrInvalidState, number, rec.Status)
	}

	switch outcome {
	case OutcomeOK:
		return s.decideOK(rec)
	case OutcomeFail:
		return s.decideFail(rec)
	case OutcomeRepeat:
		return s.decideRepeat(rec)
	default:
		return fmt.Errorf("unknown outcome %q", outcome)
	}
}

func (s *Service) decideOK(rec *models.PhoneRecord) error {
	now := s.now()
	if err := s.store.SetRegistered(rec.Phone, now); err != nil {
		return err
	}
	telemetry.Decisions.WithLabelValues("ok").Inc()

	reportsTopic, ok, err := s.store.ActiveReportsTopic(rec.DropsChat)
	if err != nil {
		return err
	}
	if ok {
		ref, err := s.ch.Send(channel.SendOptions{
			ChatID:  rec.DropsChat,
			TopicID: reportsTopic,
			Text:    reportLine(rec.Phone, now, rec.Mention(), rec.TopicLabel),
		})
		if err != nil {
			s.log.Warn().Err(err).Str("phone", rec.Phone).Msg("could not post report line")
		} else if err := s.store.SetReportRef(rec.Phone, ref.MessageID); err != nil {
			return err
		}
	}

	if err := s.ch.Edit(rec.ForwardRef, registeredText(rec.Phone), registeredKeyboard(rec.Phone)); err != nil && !channel.IsTransient(err) {
		return err
	}

	s.log.Info().Str("phone", rec.Phone).Msg("number registered")
	return nil
}

func (s *Service) decideFail(rec *models.PhoneRecord) error {
	if err := s.store.SetPhoneStatus(rec.Phone, models.StatusRejected); err != nil {
		return err
	}
	telemetry.Decisions.WithLabelValues("fail").Inc()

	if err := s.ch.Edit(rec.ForwardRef, rejectedText(rec.Phone), nil); err != nil && !channel.IsTransient(err) {
		return err
	}

	// The slot is open again; demand is visible through pending requests,
	// so only the beacon needs replacing.
	if err := s.RefreshBeacon(rec.DropsChat, rec.TopicID); err != nil {
		s.log.Warn().Err(err).Msg("beacon refresh after rejection failed")
	}

	s.log.Info().Str("phone", rec.Phone).Msg("number rejected")
	return nil
}

func (s *Service) decideRepeat(rec *models.PhoneRecord) error {
	opts := channel.SendOptions{
		ChatID:  rec.DropsChat,
		TopicID: rec.TopicID,
		Text:    repeatPromptText(rec.Phone),
		ReplyTo: rec.SubmissionRef.MessageID,
	}
	if _, err := s.ch.Send(opts); err != nil {
		if !errors.Is(err, channel.ErrNotFound) {
			return err
		}
		opts.ReplyTo = 0
		if _, err := s.ch.Send(opts); err != nil {
			return err
		}
	}

	// Same phone, same request binding: the forward message reverts to the
	// send-code prompt in place.
	if err := s.ch.Edit(rec.ForwardRef, forwardText(rec.Phone), decideKeyboard(rec.Phone)); err != nil && !channel.IsTransient(err) {
		return err
	}
	telemetry.Decisions.WithLabelValues("repeat").Inc()

	s.log.Info().Str("phone", rec.Phone).Msg("repeat code requested")
	return nil
}

// Revoke flags a finished registration as later invalidated. Only reachable
// from registered. The report line is rewritten in place; when the stored
// report message is gone a fresh one is created and re-anchored.
func (s *Service) Revoke(number string) error {
	rec, err := s.store.Phone(number)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrUnknownPhone
	}
	if rec.Status != models.StatusRegistered || rec.RegisteredAt == nil {
		return fmt.Errorf("%w: %s is %s", ErrInvalidState, number, rec.Status)
	}

	now := s.now()
	elapsed := now.Sub(*rec.RegisteredAt)

	if err := s.store.SetRevoked(rec.Phone, now); err != nil {
		return err
	}
	telemetry.Revocations.Inc()

	line := revokedReportLine(rec.Phone, *rec.RegisteredAt, now, rec.Mention(), rec.TopicLabel)

	updated := false
	if !rec.ReportRef.Zero() {
		err := s.ch.Edit(rec.ReportRef, line, nil)
		switch {
		case err == nil, errors.Is(err, channel.ErrUnchanged):
			updated = true
		case errors.Is(err, channel.ErrNotFound):
			// fall through to re-anchoring
		default:
			return err
		}
	}
	if !updated {
		reportsTopic, ok, err := s.store.ActiveReportsTopic(rec.DropsChat)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoReportsTopic
		}
		ref, err := s.ch.Send(channel.SendOptions{
			ChatID:  rec.DropsChat,
			TopicID: reportsTopic,
			Text:    line,
		})
		if err != nil {
			return err
		}
		if err := s.store.SetReportRef(rec.Phone, ref.MessageID); err != nil {
			return err
		}
	}

	edit := registeredText(rec.Phone) + revokedSuffix(elapsed)
	if err := s.ch.Edit(rec.ForwardRef, edit, requestAgainKeyboard()); err != nil && !channel.IsTransient(err) {
		return err
	}

	s.log.Info().Str("phone", rec.Phone).Str("elapsed", formatElapsed(elapsed)).Msg("registration revoked")
	return nil
}
