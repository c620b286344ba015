package service

import (
	"github.com/dropline/relay-bot/internal/telemetry"
)

// RequestNumber enqueues a pending number request anchored to the given
// office message and bumps the demand counter of every active intake topic
// linked to the office. An office may draw from several topics at once; each
// gets its beacon replaced.
func (s *Service) RequestNumber(officeChat int64, anchorMsgID int) error {
	isOffice, err := s.store.IsOfficeChat(officeChat)
	if err != nil {
		return err
	}
	if !isOffice {
		return ErrNotOfficeChat
	}

	dropsChat, err := s.store.DropsChatForOffice(officeChat)
	if err != nil {
		return err
	}
	if dropsChat == 0 {
		return ErrNoDropsChat
	}

	topics, err := s.store.ActiveTopicsForOffice(officeChat, dropsChat)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return ErrNoLinkedTopics
	}

	requestID, err := s.store.EnqueueRequest(officeChat, dropsChat, anchorMsgID)
	if err != nil {
		return err
	}
	telemetry.RequestsEnqueued.Inc()

	for _, topic := range topics {
		if err := s.store.IncrementRequired(dropsChat, topic.TopicID); err != nil {
			return err
		}
		if err := s.RefreshBeacon(dropsChat, topic.TopicID); err != nil {
			// Queue state is committed; a failed display update only costs
			// freshness until the next refresh.
			s.log.Warn().Err(err).Int64("chat", dropsChat).Int64("topic", topic.TopicID).
				Msg("beacon refresh after enqueue failed")
		}
	}

	s.log.Info().Int64("request", requestID).Int64("office", officeChat).
		Int64("drops", dropsChat).Int("topics", len(topics)).Msg("number request enqueued")
	return nil
}
