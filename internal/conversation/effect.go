package conversation

// EffectKind enumerates what the transport must do.
type EffectKind int

const (
	EffectSendText EffectKind = iota
	EffectSendPhoto
	EffectEditKeyboard
	EffectDeleteMessage
)

func (k EffectKind) String() string {
	switch k {
	case EffectSendText:
		return "send_text"
	case EffectSendPhoto:
		return "send_photo"
	case EffectEditKeyboard:
		return "edit_keyboard"
	case EffectDeleteMessage:
		return "delete_message"
	}
	return "unknown"
}

// Button is an inline button with raw callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of inline buttons.
type Keyboard [][]Button

// Effect is one outbound instruction for the messaging transport.
type Effect struct {
	Kind   EffectKind
	ChatID int64
	// Text is the message body or the photo caption.
	Text string
	// ImageURL is the backend-relative picture path for EffectSendPhoto.
	ImageURL string
	Keyboard Keyboard
	// MessageID targets EffectEditKeyboard and EffectDeleteMessage.
	MessageID int
}

// SendText builds a text effect.
func SendText(chatID int64, text string, kb Keyboard) Effect {
	return Effect{Kind: EffectSendText, ChatID: chatID, Text: text, Keyboard: kb}
}

// Result is the outcome of one transition.
type Result struct {
	Next State
	// Persist is false for events that must not touch the session key.
	Persist bool
	Effects []Effect
}
