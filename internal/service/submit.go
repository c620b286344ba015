package service

import (
	"errors"

	"github.com/dropline/relay-bot/internal/channel"
	"github.com/dropline/relay-bot/internal/models"
	"github.com/dropline/relay-bot/internal/phone"
	"github.com/dropline/relay-bot/internal/telemetry"
)

// Submitter identifies who posted a phone number.
type Submitter struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// SubmitPhone handles a text message posted in a drops-chat topic. Text
// without a phone number, or a topic that is not an active intake topic, is
// ignored without error. A matched number is forwarded to the requesting
// office as a reply to the request anchor; requests whose anchors have
// vanished are deleted, their demand released, and skipped before the next
// oldest is tried.
func (s *Service) SubmitPhone(dropsChat, topicID int64, text string, submissionMsgID int, sub Submitter) error {
	enabled, err := s.store.IntakeEnabled(dropsChat)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrIntakeDisabled
	}

	topic, err := s.store.Topic(dropsChat, topicID)
	if err != nil {
		return err
	}
	if topic == nil || !topic.IsActive || !models.IsIntakeKind(topic.Kind) {
		return nil
	}

	number := phone.Extract(text)
	if number == "" {
		return nil
	}

	offices, err := s.store.LinkedOffices(topic.TopicID)
	if err != nil {
		return err
	}
	if len(offices) == 0 {
		telemetry.MatchMisses.WithLabelValues("no_links").Inc()
		return ErrNoOfficeLinks
	}

	for {
		req, err := s.store.MatchRequest(dropsChat, offices)
		if err != nil {
			return err
		}
		if req == nil {
			total, err := s.store.PendingCount(dropsChat)
			if err != nil {
				return err
			}
			if total == 0 {
				telemetry.MatchMisses.WithLabelValues("empty").Inc()
				return ErrNoOpenRequests
			}
			telemetry.MatchMisses.WithLabelValues("unlinked").Inc()
			return ErrOfficeNotLinked
		}

		forwardRef, err := s.ch.Send(channel.SendOptions{
			ChatID:  req.OfficeChat,
			Text:    forwardText(number),
			ReplyTo: req.AnchorMsgID,
		})
		if err == nil {
			return s.completeMatch(topic, req.ID, number, submissionMsgID, sub, forwardRef)
		}
		if errors.Is(err, channel.ErrNotFound) {
			// The anchor is gone; no request it carries can ever be
			// fulfilled again. Drop them all, give their demand back,
			// try the next oldest.
			s.log.Warn().Int64("request", req.ID).Int("anchor", req.AnchorMsgID).
				Msg("request anchor vanished, dropping its requests")
			dropped, err := s.store.DeleteRequestsByAnchor(req.AnchorMsgID)
			if err != nil {
				return err
			}
			if err := s.releaseDemand(req.OfficeChat, dropsChat, int(dropped)); err != nil {
				return err
			}
			continue
		}
		return err
	}
}

// releaseDemand lowers the demand counters a dead anchor can no longer
// claim: one decrement per dropped request on every active topic linked to
// the office, mirroring the enqueue increment, then fresh beacons.
func (s *Service) releaseDemand(officeChat, dropsChat int64, dropped int) error {
	topics, err := s.store.ActiveTopicsForOffice(officeChat, dropsChat)
	if err != nil {
		return err
	}
	for _, topic := range topics {
		for i := 0; i < dropped; i++ {
			if err := s.store.DecrementRequired(topic.ChatID, topic.TopicID); err != nil {
				return err
			}
		}
		if err := s.RefreshBeacon(topic.ChatID, topic.TopicID); err != nil {
			s.log.Warn().Err(err).Int64("chat", topic.ChatID).Int64("topic", topic.TopicID).
				Msg("beacon refresh after request cleanup failed")
		}
	}
	return nil
}

func (s *Service) completeMatch(topic *models.Topic, requestID int64, number string, submissionMsgID int, sub Submitter, forwardRef models.MessageRef) error {
	now := s.now()

	rec := models.PhoneRecord{
		Phone:         number,
		SubmissionRef: models.MessageRef{ChatID: topic.ChatID, MessageID: submissionMsgID},
		ForwardRef:    forwardRef,
		DropsChat:     topic.ChatID,
		SubmitterID:   sub.ID,
		Username:      sub.Username,
		FirstName:     sub.FirstName,
		LastName:      sub.LastName,
		SubmittedAt:   now,
		Status:        models.StatusForwarded,
		TopicLabel:    topic.Label(),
		TopicID:       topic.TopicID,
		TopicKind:     topic.Kind,
	}

	confirmRef, err := s.ch.Send(channel.SendOptions{
		ChatID:  topic.ChatID,
		TopicID: topic.TopicID,
		Text:    confirmationText(number),
		ReplyTo: submissionMsgID,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("phone", number).Msg("could not confirm submission to drop")
	} else {
		rec.ConfirmRef = confirmRef
	}

	if err := s.store.UpsertPhone(rec); err != nil {
		return err
	}
	if err := s.store.FulfillRequest(requestID); err != nil {
		return err
	}
	if err := s.store.DecrementRequired(topic.ChatID, topic.TopicID); err != nil {
		return err
	}
	telemetry.Matches.Inc()

	if err := s.RefreshBeacon(topic.ChatID, topic.TopicID); err != nil {
		s.log.Warn().Err(err).Msg("beacon refresh after match failed")
	}

	s.log.Info().Str("phone", number).Int64("request", requestID).
		Int64("drops", topic.ChatID).Int64("topic", topic.TopicID).Msg("number matched and forwarded")
	return nil
}

// SubmitCode relays a code photo posted in an office chat as a reply to a
// forward message. The photo lands in the drops topic under the original
// submission; the forward message gains the outcome keyboard.
func (s *Service) SubmitCode(officeChat int64, replyToMsgID int, photoFileID string) error {
	rec, err := s.store.PhoneByForwardRef(officeChat, replyToMsgID)
	if err != nil {
		return err
	}
	if rec == nil {
		// Reply to something that is not one of our forwards.
		return nil
	}
	if rec.Status != models.StatusForwarded {
		return ErrInvalidState
	}

	topic, err := s.store.Topic(rec.DropsChat, rec.TopicID)
	if err != nil {
		return err
	}
	if topic == nil || !topic.IsActive {
		return ErrTopicInactive
	}

	opts := channel.PhotoOptions{
		ChatID:  rec.DropsChat,
		TopicID: rec.TopicID,
		FileID:  photoFileID,
		Caption: photoCaption(rec.Phone),
		ReplyTo: rec.SubmissionRef.MessageID,
	}
	if _, err := s.ch.SendPhoto(opts); err != nil {
		if !errors.Is(err, channel.ErrNotFound) {
			return err
		}
		// Submission message was deleted; deliver without the reply anchor.
		opts.ReplyTo = 0
		if _, err := s.ch.SendPhoto(opts); err != nil {
			return err
		}
	}

	if err := s.ch.Edit(rec.ForwardRef, codeSentText(rec.Phone), decideKeyboard(rec.Phone)); err != nil && !channel.IsTransient(err) {
		return err
	}

	s.log.Info().Str("phone", rec.Phone).Int64("drops", rec.DropsChat).Msg("code photo relayed")
	return nil
}
