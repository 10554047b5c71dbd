package middleware

import (
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ReplyTallyMiddleware gives every update a fresh reply tally, read back by
// the handler summary log line.
func ReplyTallyMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if tghelpers.TallyFrom(c) == nil {
			tghelpers.StartTally(c)
		}
		return next(c)
	}
}
