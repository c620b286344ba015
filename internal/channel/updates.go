package channel

import (
	"context"
	"encoding/json"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Message augments the library's message with the forum thread id that the
// pinned release predates. Library fields stay promoted.
type Message struct {
	tgbotapi.Message
	MessageThreadID int64 `json:"message_thread_id"`
}

// CallbackQuery mirrors the library's type with the augmented message.
type CallbackQuery struct {
	ID      string         `json:"id"`
	From    *tgbotapi.User `json:"from"`
	Message *Message       `json:"message"`
	Data    string         `json:"data"`
}

// Update is the slice of the update payload this bot consumes.
type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

const pollRetryDelay = 3 * time.Second

// Updates long-polls getUpdates and streams decoded updates until ctx is
// cancelled. Polling goes through MakeRequest so message_thread_id survives
// decoding; the library's own update channel would drop it.
func (t *Telegram) Updates(ctx context.Context, timeout int) <-chan Update {
	ch := make(chan Update, 100)
	go func() {
		defer close(ch)
		offset := 0
		for {
			if ctx.Err() != nil {
				return
			}

			params := tgbotapi.Params{}
			params.AddNonZero("offset", offset)
			params.AddNonZero("timeout", timeout)
			if err := params.AddInterface("allowed_updates", []string{"message", "callback_query"}); err != nil {
				t.log.Error().Err(err).Msg("could not build getUpdates request")
				return
			}

			resp, err := t.api.MakeRequest("getUpdates", params)
			if err != nil {
				t.log.Warn().Err(err).Msg("getUpdates failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(pollRetryDelay):
				}
				continue
			}

			var updates []Update
			if err := json.Unmarshal(resp.Result, &updates); err != nil {
				t.log.Error().Err(err).Msg("undecodable update batch")
				continue
			}

			for _, u := range updates {
				if u.UpdateID >= offset {
					offset = u.UpdateID + 1
				}
				select {
				case ch <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
