package service

import (
	"github.com/dropline/relay-bot/internal/channel"
	"github.com/dropline/relay-bot/internal/models"
	"github.com/dropline/relay-bot/internal/telemetry"
)

// RefreshBeacon replaces the outstanding-demand message of (chat, topic)
// with a fresh one showing the live required count. Always delete+recreate:
// the beacon must be the newest message in the topic so the next submission
// can land right under it. "Already gone" on delete is tolerated.
func (s *Service) RefreshBeacon(dropsChat, topicID int64) error {
	count, err := s.store.RequiredCount(dropsChat, topicID)
	if err != nil {
		return err
	}

	old, err := s.store.Beacon(dropsChat, topicID)
	if err != nil {
		return err
	}
	if old != nil {
		ref := models.MessageRef{ChatID: old.ChatID, MessageID: old.MessageID}
		if err := s.ch.Delete(ref); err != nil && !channel.IsTransient(err) {
			// Stale beacon stays visible but the new one still supersedes it.
			s.log.Warn().Err(err).Int64("chat", dropsChat).Int64("topic", topicID).
				Msg("could not delete stale beacon")
		}
		if err := s.store.DeleteBeacon(dropsChat, topicID); err != nil {
			return err
		}
	}

	ref, err := s.ch.Send(channel.SendOptions{
		ChatID:  dropsChat,
		TopicID: topicID,
		Text:    beaconText(count),
	})
	if err != nil {
		return err
	}
	telemetry.BeaconRefreshes.Inc()

	return s.store.SaveBeacon(dropsChat, topicID, ref.MessageID)
}
