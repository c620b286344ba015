package bot

import (
	"github.com/dropline/relay-bot/internal/action"
	"github.com/dropline/relay-bot/internal/channel"
	"github.com/dropline/relay-bot/internal/models"
	"github.com/dropline/relay-bot/internal/service"
)

func (b *Bot) handleCallback(cb *channel.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		b.answer(cb, "⌛ This button has expired.", true)
		return
	}

	act, err := action.Decode(cb.Data)
	if err != nil {
		b.log.Warn().Err(err).Str("data", cb.Data).Msg("undecodable callback payload")
		b.answer(cb, "⌛ This button has expired.", true)
		return
	}

	if !b.isOperator(cb.Message.Chat.ID, cb.From.ID) {
		b.answer(cb, "❌ Only administrators can press this.", true)
		return
	}

	switch act.Kind {
	case action.DecideOK:
		b.handleDecision(cb, act.Phone, service.OutcomeOK, "✅ Number marked as registered")
	case action.DecideFail:
		b.handleDecision(cb, act.Phone, service.OutcomeFail, "❌ Number marked as failed")
	case action.DecideRepeat:
		b.handleDecision(cb, act.Phone, service.OutcomeRepeat, "🔁 Fresh code requested")
	case action.Revoke:
		b.handleRevoke(cb, act.Phone)
	case action.RequestNumber:
		b.handleRepeatRequest(cb)
	case action.TopicMenu:
		b.showTopicMenu(cb, act)
	case action.SelectTopic:
		b.handleSelectTopic(cb, act)
	case action.Configure:
		b.showOfficeEditor(cb, act, "")
	case action.ToggleOffice:
		b.handleToggleOffice(cb, act)
	case action.ResetTopic:
		b.handleResetTopic(cb, act)
	case action.SetReports:
		b.handleSetReports(cb, act)
	case action.Back:
		b.showSettingsRoot(cb, act.TopicID)
	case action.WipeData:
		b.handleWipeData(cb)
	case action.KeepData:
		b.editMenu(cb, "❌ Database wipe cancelled.", nil)
		b.answer(cb, "", false)
	default:
		b.answer(cb, "⌛ This button has expired.", true)
	}
}

func (b *Bot) handleDecision(cb *channel.CallbackQuery, phone string, outcome service.Outcome, ok string) {
	if err := b.svc.Decide(phone, outcome); err != nil {
		b.answerError(cb, err)
		return
	}
	b.answer(cb, ok, false)
}

func (b *Bot) handleRevoke(cb *channel.CallbackQuery, phone string) {
	if err := b.svc.Revoke(phone); err != nil {
		b.answerError(cb, err)
		return
	}
	b.answer(cb, "🔴 Number marked as revoked", false)
}

func (b *Bot) handleRepeatRequest(cb *channel.CallbackQuery) {
	if err := b.svc.RequestNumber(cb.Message.Chat.ID, cb.Message.MessageID); err != nil {
		b.answerError(cb, err)
		return
	}
	b.answer(cb, "✅ Number request sent", false)
}

func (b *Bot) showSettingsRoot(cb *channel.CallbackQuery, topicID int64) {
	if topicID == 0 {
		topicID = cb.Message.MessageThreadID
	}
	b.editMenu(cb, settingsRootText, settingsRootKeyboard(topicID))
	b.answer(cb, "", false)
}

func (b *Bot) showTopicMenu(cb *channel.CallbackQuery, act action.Action) {
	b.editMenu(cb, "⚙️ Topic "+act.TopicKind+"\n\nChoose an action:", topicMenuKeyboard(act.TopicKind, act.TopicID))
	b.answer(cb, "", false)
}

func (b *Bot) handleSelectTopic(cb *channel.CallbackQuery, act action.Action) {
	if err := b.svc.ConfigureTopic(cb.Message.Chat.ID, act.TopicID, act.TopicKind, ""); err != nil {
		b.answerError(cb, err)
		return
	}
	// jump straight into office linking so a fresh topic is usable at once
	b.showOfficeEditor(cb, act, "✅ Topic set to "+act.TopicKind)
}

func (b *Bot) showOfficeEditor(cb *channel.CallbackQuery, act action.Action, notice string) {
	kb, err := b.officesKeyboard(act.TopicKind, act.TopicID)
	if err != nil {
		b.answerError(cb, err)
		return
	}
	b.editMenu(cb, "🔗 Offices linked to topic "+act.TopicKind+"\n\nTap an office to link or unlink it:", kb)
	b.answer(cb, notice, false)
}

func (b *Bot) handleToggleOffice(cb *channel.CallbackQuery, act action.Action) {
	linked, err := b.svc.ToggleOffice(act.TopicID, act.OfficeID)
	if err != nil {
		b.answerError(cb, err)
		return
	}

	kb, err := b.officesKeyboard(act.TopicKind, act.TopicID)
	if err != nil {
		b.answerError(cb, err)
		return
	}
	b.editMenu(cb, "🔗 Offices linked to topic "+act.TopicKind+"\n\nTap an office to link or unlink it:", kb)

	if linked {
		b.answer(cb, "✅ Office linked", false)
	} else {
		b.answer(cb, "⬜ Office unlinked", false)
	}
}

func (b *Bot) handleResetTopic(cb *channel.CallbackQuery, act action.Action) {
	if err := b.svc.ResetTopic(cb.Message.Chat.ID, act.TopicID); err != nil {
		b.answerError(cb, err)
		return
	}
	b.editMenu(cb, settingsRootText, settingsRootKeyboard(act.TopicID))
	b.answer(cb, "♻️ Topic configuration cleared", false)
}

func (b *Bot) handleSetReports(cb *channel.CallbackQuery, act action.Action) {
	if err := b.svc.SetReportsTopic(cb.Message.Chat.ID, act.TopicID); err != nil {
		b.answerError(cb, err)
		return
	}
	b.editMenu(cb, settingsRootText, settingsRootKeyboard(act.TopicID))
	b.answer(cb, "📊 Reports topic set", false)
}

// handleWipeData clears the database. The allow-list check repeats here so
// a forged payload pressed by a mere chat admin cannot reach the wipe.
func (b *Bot) handleWipeData(cb *channel.CallbackQuery) {
	allowed, err := b.store.IsAllowedUser(cb.From.ID)
	if err != nil || !allowed {
		b.answer(cb, "❌ Only allowed users can do this.", true)
		return
	}
	if err := b.store.WipeAll(); err != nil {
		b.log.Error().Err(err).Msg("database wipe failed")
		b.answer(cb, "❌ Could not clear the database.", true)
		return
	}
	b.log.Warn().Int64("user", cb.From.ID).Msg("database wiped on operator request")
	b.editMenu(cb, "✅ Database cleared. Send /start to configure the chats again.", nil)
	b.answer(cb, "✅ Done", false)
}

func (b *Bot) editMenu(cb *channel.CallbackQuery, text string, kb channel.Keyboard) {
	ref := models.MessageRef{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.MessageID}
	if err := b.tg.Edit(ref, text, kb); err != nil && !channel.IsTransient(err) {
		b.log.Error().Err(err).Int64("chat", ref.ChatID).Int("message", ref.MessageID).
			Msg("could not redraw settings menu")
	}
}

func (b *Bot) answer(cb *channel.CallbackQuery, text string, alert bool) {
	if err := b.tg.AnswerCallback(cb.ID, text, alert); err != nil {
		b.log.Warn().Err(err).Msg("callback answer failed")
	}
}

func (b *Bot) answerError(cb *channel.CallbackQuery, err error) {
	text := userMessage(err)
	if text == "" {
		b.log.Error().Err(err).Str("data", cb.Data).Msg("callback action failed")
		text = "❌ Something went wrong while processing this."
	}
	b.answer(cb, text, true)
}
