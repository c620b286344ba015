// Package bot is the Telegram boundary: it parses commands, enforces the
// admin/allow-list gates, decodes button payloads, and maps core errors to
// operator-facing messages. No matching or lifecycle logic lives here.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dropline/relay-bot/internal/channel"
	"github.com/dropline/relay-bot/internal/db"
	"github.com/dropline/relay-bot/internal/service"
)

type Bot struct {
	tg    *channel.Telegram
	store *db.DB
	svc   *service.Service
	log   zerolog.Logger

	// operators mid binding-setup in their private chat
	awaitingBinding map[int64]bool
}

func New(tg *channel.Telegram, store *db.DB, svc *service.Service, log zerolog.Logger) *Bot {
	return &Bot{
		tg:              tg,
		store:           store,
		svc:             svc,
		log:             log,
		awaitingBinding: make(map[int64]bool),
	}
}

// Run processes the update stream until ctx is cancelled. One update at a
// time; nothing here spawns per-update goroutines.
func (b *Bot) Run(ctx context.Context) error {
	for update := range b.tg.Updates(ctx, 60) {
		b.handleUpdate(update)
	}
	return ctx.Err()
}

func (b *Bot) handleUpdate(update channel.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Msg("recovered in update handler")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message == nil || update.Message.From == nil:
		// other update kinds are not interesting
	case update.Message.IsCommand():
		b.handleCommand(update.Message)
	case len(update.Message.Photo) > 0:
		b.handlePhoto(update.Message)
	case update.Message.Text != "":
		b.handleText(update.Message)
	}
}

func (b *Bot) handleCommand(msg *channel.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(msg)
	case "stop":
		b.handleStop(msg)
	case "settings":
		b.handleSettings(msg)
	case "n":
		b.handleNumberRequest(msg)
	case "allow":
		b.handleAllow(msg, true)
	case "disallow":
		b.handleAllow(msg, false)
	case "id":
		b.handleID(msg)
	case "resetdb":
		b.handleResetDB(msg)
	default:
		// commands in groups frequently target other bots; stay quiet
		if msg.Chat.IsPrivate() {
			b.reply(msg, "Unknown command.")
		}
	}
}

func (b *Bot) handleStart(msg *channel.Message) {
	userID := msg.From.ID

	if msg.Chat.IsPrivate() {
		allowed, err := b.store.IsAllowedUser(userID)
		if err != nil {
			b.log.Error().Err(err).Msg("allow-list check failed")
			return
		}
		if !allowed {
			b.reply(msg, "🔒 This is a private bot.\n\n❌ Outside users cannot use it.")
			return
		}
		b.awaitingBinding[userID] = true
		prompt := "👋 Welcome! To configure:\n" +
			"1. Find your chat ids\n" +
			"2. Send the office chat ids and the drops chat id, comma separated\n" +
			"Format: <code>office1, office2, ..., drops</code>\n\n" +
			"Example:\n<code>-100111, -100222, -100333, -100444</code>"
		if offices, drops, err := b.store.OperatorBinding(userID); err == nil && drops != 0 {
			prompt = "Current configuration:\n" + bindingSummary(offices, drops) +
				"\n\nSend a new list to replace it.\n\n" + prompt
		}
		b.reply(msg, prompt)
		return
	}

	if !b.isOperator(msg.Chat.ID, userID) {
		b.reply(msg, "❌ Only administrators can use this command!")
		return
	}

	// resume intake when issued in a drops chat
	if isDrops, err := b.store.IsDropsChat(msg.Chat.ID); err == nil && isDrops {
		if err := b.svc.SetIntake(msg.Chat.ID, true); err != nil {
			b.log.Error().Err(err).Msg("could not enable intake")
		}
	}
	b.reply(msg, "👋 Welcome to the mediator bot!\n\n"+
		"This bot relays phone numbers and codes between office and drops groups.\n"+
		"Use /settings in the drops chat to configure topics.")
}

func (b *Bot) handleStop(msg *channel.Message) {
	allowed, err := b.store.IsAllowedUser(msg.From.ID)
	if err != nil || !allowed {
		b.reply(msg, "❌ Only allowed users can use this command.")
		return
	}
	isDrops, err := b.store.IsDropsChat(msg.Chat.ID)
	if err != nil || !isDrops {
		b.reply(msg, "❌ This command works in a drops chat.")
		return
	}
	if err := b.svc.SetIntake(msg.Chat.ID, false); err != nil {
		b.log.Error().Err(err).Msg("could not pause intake")
		b.reply(msg, "❌ Could not pause intake.")
		return
	}
	b.reply(msg, "⏸ Number intake paused. Use /start to resume.")
}

func (b *Bot) handleSettings(msg *channel.Message) {
	if !b.isOperator(msg.Chat.ID, msg.From.ID) {
		b.reply(msg, "❌ Only administrators can use this command!")
		return
	}
	isDrops, err := b.store.IsDropsChat(msg.Chat.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("drops chat check failed")
		return
	}
	if !isDrops {
		b.reply(msg, "❌ This command is only available in drops chats!")
		return
	}

	_, err = b.tg.Send(channel.SendOptions{
		ChatID:   msg.Chat.ID,
		TopicID:  msg.MessageThreadID,
		Text:     settingsRootText,
		Keyboard: settingsRootKeyboard(msg.MessageThreadID),
	})
	if err != nil {
		b.log.Error().Err(err).Msg("could not send settings menu")
	}
}

func (b *Bot) handleNumberRequest(msg *channel.Message) {
	if err := b.svc.RequestNumber(msg.Chat.ID, msg.MessageID); err != nil {
		b.replyError(msg, err)
		return
	}
	b.reply(msg, "✅ Number requests sent to the drops group")
}

func (b *Bot) handleAllow(msg *channel.Message, allow bool) {
	if !msg.Chat.IsPrivate() {
		return
	}
	ok, err := b.store.IsAllowedUser(msg.From.ID)
	if err != nil || !ok {
		b.reply(msg, "❌ You do not have permission to run this command.")
		return
	}

	arg := strings.TrimSpace(msg.CommandArguments())
	userID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.reply(msg, "❌ Usage: /"+msg.Command()+" [user_id]")
		return
	}

	if allow {
		if err := b.store.AllowUser(userID); err != nil {
			b.reply(msg, "❌ Could not add the user.")
			return
		}
		b.reply(msg, "✅ User "+arg+" added to the allow-list.")
		return
	}

	removed, err := b.store.DisallowUser(userID)
	if err != nil {
		b.reply(msg, "❌ Could not remove the user.")
		return
	}
	if !removed {
		b.reply(msg, "❌ User "+arg+" is not on the allow-list.")
		return
	}
	b.reply(msg, "✅ User "+arg+" removed from the allow-list.")
}

// handleResetDB asks for confirmation before clearing the database. The
// wipe itself only happens from the confirm button.
func (b *Bot) handleResetDB(msg *channel.Message) {
	if !msg.Chat.IsPrivate() {
		return
	}
	allowed, err := b.store.IsAllowedUser(msg.From.ID)
	if err != nil || !allowed {
		b.reply(msg, "❌ You do not have permission to run this command.")
		return
	}

	_, err = b.tg.Send(channel.SendOptions{
		ChatID:   msg.Chat.ID,
		Text:     "⚠️ Are you sure you want to clear the database?\n\nEvery chat binding, topic and queued request will be lost.",
		Keyboard: resetConfirmKeyboard(),
	})
	if err != nil {
		b.log.Error().Err(err).Msg("could not send reset confirmation")
	}
}

// handleID echoes the ids needed during binding and topic setup.
func (b *Bot) handleID(msg *channel.Message) {
	text := "🆔 Chat id: <code>" + strconv.FormatInt(msg.Chat.ID, 10) + "</code>"
	if msg.MessageThreadID != 0 {
		text += "\n🧵 Topic id: <code>" + strconv.FormatInt(msg.MessageThreadID, 10) + "</code>"
	}
	b.reply(msg, text)
}

func (b *Bot) handleText(msg *channel.Message) {
	if msg.Chat.IsPrivate() {
		if b.awaitingBinding[msg.From.ID] {
			b.handleBindingInput(msg)
		}
		return
	}

	isDrops, err := b.store.IsDropsChat(msg.Chat.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("drops chat check failed")
		return
	}
	if !isDrops {
		return
	}

	err = b.svc.SubmitPhone(msg.Chat.ID, msg.MessageThreadID, msg.Text, msg.MessageID, service.Submitter{
		ID:        msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	})
	if err != nil {
		b.replyError(msg, err)
	}
}

func (b *Bot) handleBindingInput(msg *channel.Message) {
	delete(b.awaitingBinding, msg.From.ID)

	var ids []int64
	for _, part := range strings.Split(strings.ReplaceAll(msg.Text, " ", ""), ",") {
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			b.reply(msg, "❌ Bad id format!\n\nEvery id must be a number.\n"+
				"Example:\n<code>-100111,-100222,-100444</code>")
			return
		}
		ids = append(ids, id)
	}

	if err := b.svc.Bind(msg.From.ID, ids); err != nil {
		if errors.Is(err, service.ErrBadBindingList) {
			b.reply(msg, "❌ Wrong format!\n\nSend at least two ids, comma separated "+
				"(one office chat and the drops chat):\n<code>office1,...,drops</code>")
			return
		}
		b.log.Error().Err(err).Msg("binding save failed")
		b.reply(msg, "❌ Could not save the configuration.")
		return
	}

	b.reply(msg, "✅ Chat configuration saved!\n\n"+bindingSummary(ids[:len(ids)-1], ids[len(ids)-1]))
}

func bindingSummary(offices []int64, drops int64) string {
	var sb strings.Builder
	for i, id := range offices {
		sb.WriteString("Office " + strconv.Itoa(i+1) + ": <code>" + strconv.FormatInt(id, 10) + "</code>\n")
	}
	sb.WriteString("Drops: <code>" + strconv.FormatInt(drops, 10) + "</code>")
	return sb.String()
}

func (b *Bot) handlePhoto(msg *channel.Message) {
	if msg.ReplyToMessage == nil || msg.Chat.IsPrivate() {
		return
	}

	// largest rendition carries the readable code
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	err := b.svc.SubmitCode(msg.Chat.ID, msg.ReplyToMessage.MessageID, fileID)
	if err != nil {
		b.replyError(msg, err)
	}
}

// isOperator allows chat admins and allow-listed users through.
func (b *Bot) isOperator(chatID, userID int64) bool {
	if ok, err := b.store.IsAllowedUser(userID); err == nil && ok {
		return true
	}
	admin, err := b.tg.IsAdmin(chatID, userID)
	if err != nil {
		b.log.Warn().Err(err).Int64("chat", chatID).Int64("user", userID).Msg("admin check failed")
		return false
	}
	return admin
}

func (b *Bot) reply(msg *channel.Message, text string) {
	_, err := b.tg.Send(channel.SendOptions{
		ChatID:  msg.Chat.ID,
		TopicID: msg.MessageThreadID,
		Text:    text,
		ReplyTo: msg.MessageID,
	})
	if err != nil {
		b.log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("reply failed")
	}
}

// replyError maps core sentinels to their operator-facing messages.
// Internal failures get a generic line and a log entry with full context.
func (b *Bot) replyError(msg *channel.Message, err error) {
	if text := userMessage(err); text != "" {
		b.reply(msg, text)
		return
	}
	b.log.Error().Err(err).Int64("chat", msg.Chat.ID).Int("message", msg.MessageID).
		Msg("operation failed")
	b.reply(msg, "❌ Something went wrong while processing this.")
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNotOfficeChat):
		return "❌ Numbers can only be requested from configured office chats! Ask an administrator to add this chat."
	case errors.Is(err, service.ErrNoDropsChat):
		return "❌ No drops chat is configured for this office!"
	case errors.Is(err, service.ErrNoLinkedTopics):
		return "⚠️ No active intake topics for this office! Use /settings in the drops chat"
	case errors.Is(err, service.ErrNoOfficeLinks):
		return "❌ No office is linked to this topic"
	case errors.Is(err, service.ErrNoOpenRequests):
		return "❌ No open requests for this topic"
	case errors.Is(err, service.ErrOfficeNotLinked):
		return "❌ This office is not linked to this topic"
	case errors.Is(err, service.ErrIntakeDisabled):
		return "⏸ Number intake is paused. Use /start to resume."
	case errors.Is(err, service.ErrUnknownPhone):
		return "❌ No record found for this number"
	case errors.Is(err, service.ErrInvalidState):
		return "❌ This action is not available in the number's current state"
	case errors.Is(err, service.ErrTopicInactive):
		return "❌ The topic is no longer active"
	case errors.Is(err, service.ErrNoReportsTopic):
		return "❌ No reports topic is configured!"
	case errors.Is(err, channel.ErrForbidden):
		return "❌ The bot is missing permissions for that."
	default:
		return ""
	}
}
