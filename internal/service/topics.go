package service

import (
	"fmt"

	"github.com/dropline/relay-bot/internal/models"
)

// ConfigureTopic declares (or reconfigures) a topic of a drops chat. A
// reports topic soft-supersedes the chat's prior active reports topic.
func (s *Service) ConfigureTopic(dropsChat, topicID int64, kind, customLabel string) error {
	if !validKind(kind) {
		return fmt.Errorf("unknown topic kind %q", kind)
	}
	if err := s.store.UpsertTopic(dropsChat, topicID, kind, customLabel); err != nil {
		return err
	}
	s.log.Info().Int64("chat", dropsChat).Int64("topic", topicID).Str("kind", kind).Msg("topic configured")
	return nil
}

// SetReportsTopic marks a topic as the chat's single active reports topic.
func (s *Service) SetReportsTopic(dropsChat, topicID int64) error {
	return s.ConfigureTopic(dropsChat, topicID, models.KindReports, "Reports")
}

// ResetTopic drops a topic configuration and its office links.
func (s *Service) ResetTopic(dropsChat, topicID int64) error {
	return s.store.ResetTopic(dropsChat, topicID)
}

// LinkOffice turns one topic/office link on or off.
func (s *Service) LinkOffice(topicID, officeChat int64, on bool) error {
	return s.store.LinkOffice(topicID, officeChat, on)
}

// ToggleOffice flips one topic/office link and reports the new state.
func (s *Service) ToggleOffice(topicID, officeChat int64) (bool, error) {
	return s.store.ToggleOffice(topicID, officeChat)
}

// Bind replaces an operator's whole binding set. The last chat id is the
// drops chat, everything before it an office chat.
func (s *Service) Bind(operatorID int64, chatIDs []int64) error {
	if len(chatIDs) < 2 {
		return ErrBadBindingList
	}
	offices := chatIDs[:len(chatIDs)-1]
	dropsChat := chatIDs[len(chatIDs)-1]
	if err := s.store.SaveBinding(operatorID, offices, dropsChat); err != nil {
		return err
	}
	s.log.Info().Int64("operator", operatorID).Ints64("offices", offices).
		Int64("drops", dropsChat).Msg("binding saved")
	return nil
}

// SetIntake flips the persisted per-drops-chat intake switch.
func (s *Service) SetIntake(dropsChat int64, enabled bool) error {
	return s.store.SetIntakeEnabled(dropsChat, enabled)
}

func validKind(kind string) bool {
	if kind == models.KindReports {
		return true
	}
	for _, k := range models.RatioKinds {
		if k == kind {
			return true
		}
	}
	return false
}
