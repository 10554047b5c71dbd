package helpers

import (
	"bytes"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

type replyKind int

const (
	replySend replyKind = iota
	replyEdit
	replyDelete
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes helper calls through d. nil makes them synchronous.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// call counts the reply on the update's tally and runs it through the
// dispatcher. A closed queue falls back to a direct call. A full queue is
// an error: a direct call would overtake replies already queued for the chat.
func call(c tele.Context, kind replyKind, keyboard bool, action, endpoint string, run func() error) error {
	TallyFrom(c).add(kind, keyboard)
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("status", "skip"),
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends plain text. Only the first options value is used.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var so *tele.SendOptions
	if len(opts) > 0 {
		so = opts[0]
	}
	return call(c, replySend, so != nil && so.ReplyMarkup != nil, "send.text", "sendMessage", func() error {
		if so != nil {
			return c.Send(text, so)
		}
		return c.Send(text)
	})
}

// SendMDV2 sends text already escaped for MarkdownV2.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	so := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2}
	if len(markup) > 0 {
		so.ReplyMarkup = markup[0]
	}
	return SendText(c, text, so)
}

// SendPhoto uploads image with a caption. Each attempt reads image afresh.
func SendPhoto(c tele.Context, image []byte, caption string, markup *tele.ReplyMarkup) error {
	return call(c, replySend, markup != nil, "send.photo", "sendPhoto", func() error {
		photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(image)), Caption: caption}
		return c.Send(photo, &tele.SendOptions{ReplyMarkup: markup})
	})
}

// EditReplyMarkup swaps the inline keyboard of messageID in the current
// chat. An unchanged keyboard is not an error.
func EditReplyMarkup(c tele.Context, messageID int, markup *tele.ReplyMarkup) error {
	msg := chatMessage(c, messageID)
	return call(c, replyEdit, markup != nil, "edit.markup", "editMessageReplyMarkup", func() error {
		_, err := c.Bot().EditReplyMarkup(msg, markup)
		if errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		return err
	})
}

// DeleteMessage removes messageID from the current chat.
func DeleteMessage(c tele.Context, messageID int) error {
	msg := chatMessage(c, messageID)
	return call(c, replyDelete, false, "delete.message", "deleteMessage", func() error {
		return c.Bot().Delete(msg)
	})
}

func chatMessage(c tele.Context, messageID int) tele.StoredMessage {
	_, _, chatID := UpdateIDs(c)
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}
