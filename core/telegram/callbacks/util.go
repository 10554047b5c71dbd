package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits Telebot's \f<unique>|<payload> encoding.
// Raw button data without the marker is returned as the unique key.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	parts := strings.SplitN(raw, "|", 2)
	unique := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return unique, payload
}

// CallbackKey returns the registry key of the pressed button.
func CallbackKey(c tele.Context) string {
	k, _ := ParseCallbackData(c.Callback())
	return k
}

// RawData returns the callback data as sent by the button together with the
// id of the message carrying the keyboard.
func RawData(c tele.Context) (string, int) {
	cb := c.Callback()
	if cb == nil {
		return "", 0
	}
	data := cb.Data
	if cb.Unique != "" {
		data = cb.Unique
		if cb.Data != "" {
			data += "|" + cb.Data
		}
	}
	msgID := 0
	if cb.Message != nil {
		msgID = cb.Message.ID
	}
	return data, msgID
}
