package bot

import (
	"strconv"

	"github.com/dropline/relay-bot/internal/action"
	"github.com/dropline/relay-bot/internal/channel"
	"github.com/dropline/relay-bot/internal/models"
)

const settingsRootText = "⚙️ Topic settings\n\nPick the payout kind for this topic, or mark it as the reports topic:"

func settingsRootKeyboard(topicID int64) channel.Keyboard {
	var kb channel.Keyboard
	for _, kind := range models.RatioKinds {
		kb = append(kb, channel.Row(channel.Button{
			Text: kind,
			Data: action.Action{Kind: action.TopicMenu, TopicKind: kind, TopicID: topicID}.Encode(),
		}))
	}
	kb = append(kb, channel.Row(channel.Button{
		Text: "📊 Reports",
		Data: action.Action{Kind: action.SetReports, TopicID: topicID}.Encode(),
	}))
	return kb
}

func resetConfirmKeyboard() channel.Keyboard {
	return channel.Keyboard{
		channel.Row(
			channel.Button{Text: "Yes", Data: action.Action{Kind: action.WipeData}.Encode()},
			channel.Button{Text: "No", Data: action.Action{Kind: action.KeepData}.Encode()},
		),
	}
}

func topicMenuKeyboard(kind string, topicID int64) channel.Keyboard {
	return channel.Keyboard{
		channel.Row(channel.Button{
			Text: "✅ Use this topic as " + kind,
			Data: action.Action{Kind: action.SelectTopic, TopicKind: kind, TopicID: topicID}.Encode(),
		}),
		channel.Row(channel.Button{
			Text: "🔗 Link offices",
			Data: action.Action{Kind: action.Configure, TopicKind: kind, TopicID: topicID}.Encode(),
		}),
		channel.Row(channel.Button{
			Text: "♻️ Reset topic",
			Data: action.Action{Kind: action.ResetTopic, TopicKind: kind, TopicID: topicID}.Encode(),
		}),
		channel.Row(channel.Button{
			Text: "⬅️ Back",
			Data: action.Action{Kind: action.Back, TopicID: topicID}.Encode(),
		}),
	}
}

// officesKeyboard draws one toggle row per known office chat, checked when
// the office is linked to the topic.
func (b *Bot) officesKeyboard(kind string, topicID int64) (channel.Keyboard, error) {
	offices, err := b.store.AllOfficeChats()
	if err != nil {
		return nil, err
	}

	var kb channel.Keyboard
	for _, office := range offices {
		linked, err := b.store.IsLinked(topicID, office)
		if err != nil {
			return nil, err
		}
		mark := "⬜"
		if linked {
			mark = "✅"
		}
		kb = append(kb, channel.Row(channel.Button{
			Text: mark + " " + strconv.FormatInt(office, 10),
			Data: action.Action{Kind: action.ToggleOffice, TopicKind: kind, TopicID: topicID, OfficeID: office}.Encode(),
		}))
	}
	kb = append(kb, channel.Row(channel.Button{
		Text: "⬅️ Back",
		Data: action.Action{Kind: action.Back, TopicID: topicID}.Encode(),
	}))
	return kb, nil
}
