package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type senderContext struct {
	tele.Context
	user *tele.User
}

func (c senderContext) Sender() *tele.User { return c.user }

func TestAdminOnlyMiddleware(t *testing.T) {
	var reached, rejected int
	next := func(tele.Context) error {
		reached++
		return nil
	}
	reject := func(tele.Context) error {
		rejected++
		return nil
	}

	h := AdminOnlyMiddleware(AdminOptions{AdminID: 7, OnReject: reject})(next)
	require.NoError(t, h(senderContext{user: &tele.User{ID: 7}}))
	require.NoError(t, h(senderContext{user: &tele.User{ID: 8}}))
	require.NoError(t, h(senderContext{}))
	assert.Equal(t, 1, reached)
	assert.Equal(t, 2, rejected)

	closed := AdminOnlyMiddleware(AdminOptions{})(next)
	require.NoError(t, closed(senderContext{user: &tele.User{ID: 7}}))
	assert.Equal(t, 1, reached, "no admin configured")
}
