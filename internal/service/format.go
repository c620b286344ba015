package service

import (
	"fmt"
	"time"

	"github.com/dropline/relay-bot/internal/action"
	"github.com/dropline/relay-bot/internal/channel"
)

// Operator- and drop-facing message texts. Kept in one place so the bot
// boundary and the tests share a single source of truth.

func beaconText(count int) string {
	return fmt.Sprintf("📱 Numbers needed: %d\n\n⚠️ Numbers wanted!", count)
}

func forwardText(phone string) string {
	return fmt.Sprintf("📱 New number: <code>%s</code>\n<i>Reply to this message with a photo of the code</i>", phone)
}

func codeSentText(phone string) string {
	return fmt.Sprintf("📲 Number: <code>%s</code>\n✅ Code sent", phone)
}

func registeredText(phone string) string {
	return fmt.Sprintf("📲 Number: %s\n✅ Registered", phone)
}

func rejectedText(phone string) string {
	return fmt.Sprintf("📲 Number: %s\n❌ Not registered", phone)
}

func confirmationText(phone string) string {
	return fmt.Sprintf("✅ Number <code>%s</code> accepted!\n\n⚠️ Stay online until registration completes.", phone)
}

func repeatPromptText(phone string) string {
	return fmt.Sprintf("📱 %s\n🔄 A fresh code is on its way. Please stay online", phone)
}

func photoCaption(phone string) string {
	return "📱 " + phone
}

// reportLine is the reports-topic entry for a finished registration.
func reportLine(phone string, registeredAt time.Time, mention, topicLabel string) string {
	return fmt.Sprintf("%s %s %s | %s", phone, registeredAt.Format("15:04"), mention, topicLabel)
}

// revokedReportLine rewrites a report line after revocation, carrying the
// registration window and the elapsed duration.
func revokedReportLine(phone string, registeredAt, revokedAt time.Time, mention, topicLabel string) string {
	return fmt.Sprintf("%s %s-%s (%s) %s | %s",
		phone,
		registeredAt.Format("15:04"),
		revokedAt.Format("15:04"),
		formatElapsed(revokedAt.Sub(registeredAt)),
		mention,
		topicLabel,
	)
}

func revokedSuffix(elapsed time.Duration) string {
	return fmt.Sprintf("\n🔴 Revoked after %s", formatElapsed(elapsed))
}

// formatElapsed renders a duration as MM:SS, floor-division minutes and
// remainder seconds, both zero-padded.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// decideKeyboard offers the three outcome decisions for a forwarded number.
func decideKeyboard(phone string) channel.Keyboard {
	return channel.Keyboard{
		channel.Row(
			channel.Button{Text: "✅ Registered", Data: action.Action{Kind: action.DecideOK, Phone: phone}.Encode()},
			channel.Button{Text: "❌ Failed", Data: action.Action{Kind: action.DecideFail, Phone: phone}.Encode()},
		),
		channel.Row(
			channel.Button{Text: "🔁 Repeat", Data: action.Action{Kind: action.DecideRepeat, Phone: phone}.Encode()},
		),
	}
}

// registeredKeyboard offers the two follow-ups after a success.
func registeredKeyboard(phone string) channel.Keyboard {
	return channel.Keyboard{
		channel.Row(
			channel.Button{Text: "📱 Request number", Data: action.Action{Kind: action.RequestNumber}.Encode()},
			channel.Button{Text: "🔴 Revoke", Data: action.Action{Kind: action.Revoke, Phone: phone}.Encode()},
		),
	}
}

// requestAgainKeyboard is what remains on the office message after a revoke.
func requestAgainKeyboard() channel.Keyboard {
	return channel.Keyboard{
		channel.Row(
			channel.Button{Text: "📱 Request number", Data: action.Action{Kind: action.RequestNumber}.Encode()},
		),
	}
}
