package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	k, p := ParseCallbackData(&tele.Callback{Data: "increase_7"})
	assert.Equal(t, "increase_7", k)
	assert.Empty(t, p)

	k, p = ParseCallbackData(&tele.Callback{Data: "\fconfirm|42"})
	assert.Equal(t, "confirm", k)
	assert.Equal(t, "42", p)

	k, p = ParseCallbackData(&tele.Callback{Unique: "reload", Data: "all"})
	assert.Equal(t, "reload", k)
	assert.Equal(t, "all", p)

	k, p = ParseCallbackData(nil)
	assert.Empty(t, k)
	assert.Empty(t, p)
}
