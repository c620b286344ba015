package channel

import (
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/dropline/relay-bot/internal/models"
)

// Telegram implements Channel over the Bot API. Thread-scoped sends go
// through MakeRequest because the pinned library release predates forum
// topics and its typed configs have no message_thread_id field.
type Telegram struct {
	api *tgbotapi.BotAPI
	log zerolog.Logger
}

func NewTelegram(token string, log zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	log.Info().Str("account", api.Self.UserName).Msg("authorized on telegram")
	return &Telegram{api: api, log: log}, nil
}

func (t *Telegram) Send(opts SendOptions) (models.MessageRef, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", opts.ChatID)
	params.AddNonEmpty("text", opts.Text)
	params.AddNonEmpty("parse_mode", "HTML")
	params.AddNonZero("reply_to_message_id", opts.ReplyTo)
	params.AddNonZero64("message_thread_id", opts.TopicID)
	if err := addKeyboard(params, opts.Keyboard); err != nil {
		return models.MessageRef{}, err
	}

	resp, err := t.api.MakeRequest("sendMessage", params)
	if err != nil {
		return models.MessageRef{}, classify(err)
	}
	return refFromResponse(opts.ChatID, resp)
}

func (t *Telegram) SendPhoto(opts PhotoOptions) (models.MessageRef, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", opts.ChatID)
	params.AddNonEmpty("photo", opts.FileID)
	params.AddNonEmpty("caption", opts.Caption)
	params.AddNonEmpty("parse_mode", "HTML")
	params.AddNonZero("reply_to_message_id", opts.ReplyTo)
	params.AddNonZero64("message_thread_id", opts.TopicID)

	resp, err := t.api.MakeRequest("sendPhoto", params)
	if err != nil {
		return models.MessageRef{}, classify(err)
	}
	return refFromResponse(opts.ChatID, resp)
}

func (t *Telegram) Edit(ref models.MessageRef, text string, keyboard Keyboard) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", ref.ChatID)
	params.AddNonZero("message_id", ref.MessageID)
	params.AddNonEmpty("text", text)
	params.AddNonEmpty("parse_mode", "HTML")
	if err := addKeyboard(params, keyboard); err != nil {
		return err
	}

	_, err := t.api.MakeRequest("editMessageText", params)
	return classify(err)
}

func (t *Telegram) Delete(ref models.MessageRef) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", ref.ChatID)
	params.AddNonZero("message_id", ref.MessageID)

	_, err := t.api.MakeRequest("deleteMessage", params)
	return classify(err)
}

// IsAdmin reports whether the user is the chat's creator or an administrator.
func (t *Telegram) IsAdmin(chatID, userID int64) (bool, error) {
	member, err := t.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return false, classify(err)
	}
	return member.Status == "creator" || member.Status == "administrator", nil
}

// AnswerCallback acknowledges a button press, optionally with an alert popup.
func (t *Telegram) AnswerCallback(callbackID, text string, alert bool) error {
	params := tgbotapi.Params{}
	params.AddNonEmpty("callback_query_id", callbackID)
	params.AddNonEmpty("text", text)
	params.AddBool("show_alert", alert)

	_, err := t.api.MakeRequest("answerCallbackQuery", params)
	return classify(err)
}

func addKeyboard(params tgbotapi.Params, keyboard Keyboard) error {
	if len(keyboard) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return params.AddInterface("reply_markup", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func refFromResponse(chatID int64, resp *tgbotapi.APIResponse) (models.MessageRef, error) {
	var sent struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(resp.Result, &sent); err != nil {
		return models.MessageRef{}, fmt.Errorf("decode send response: %w", err)
	}
	return models.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// classify folds Bot API error descriptions into the package taxonomy.
// The matching mirrors the descriptions the API actually returns for gone
// messages, no-op edits, and missing rights.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "message to delete not found"),
		strings.Contains(msg, "message to edit not found"),
		strings.Contains(msg, "message to reply not found"),
		strings.Contains(msg, "replied message not found"),
		strings.Contains(msg, "message not found"):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case strings.Contains(msg, "message is not modified"):
		return fmt.Errorf("%w: %v", ErrUnchanged, err)
	case strings.Contains(msg, "message can't be deleted"),
		strings.Contains(msg, "not enough rights"),
		strings.Contains(msg, "bot was blocked"),
		strings.Contains(msg, "forbidden"):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	default:
		return err
	}
}
