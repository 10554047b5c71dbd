// Package bot adapts Telegram updates to conversation events and turns
// conversation effects into Telegram API calls.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/shopbot/core/logger"
	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/callbacks"
	"github.com/m3rciful/shopbot/core/telegram/commands"
	"github.com/m3rciful/shopbot/core/telegram/format"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/core/telegram/keyboard"
	"github.com/m3rciful/shopbot/core/telegram/router"
	"github.com/m3rciful/shopbot/internal/conversation"
	"github.com/m3rciful/shopbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// Dispatcher runs one conversation event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev conversation.Event) (session.Reply, error)
}

// Images downloads product pictures.
type Images interface {
	FetchImage(ctx context.Context, path string) ([]byte, error)
}

// Reloader refreshes the cached product list.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// Bot is the transport adapter of the shop.
type Bot struct {
	disp    Dispatcher
	images  Images
	catalog Reloader
}

// New wires the adapter.
func New(disp Dispatcher, images Images, catalog Reloader) *Bot {
	return &Bot{disp: disp, images: images, catalog: catalog}
}

// Register adds the shop commands to the registry.
func (b *Bot) Register(reg *tg.Registry) error {
	if err := reg.RegisterCommand("/start", commands.Command{
		Handler:     b.Start,
		Description: "Show the catalog",
	}); err != nil {
		return err
	}
	return reg.RegisterCommand("/reload", commands.Command{
		Handler:     b.Reload,
		Description: "Refresh the product cache",
		AdminOnly:   true,
	})
}

// Routes builds every handler the shop needs, commands included.
func (b *Bot) Routes(reg *tg.Registry, adminID int64) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: adminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		Default:     b.Callback,
		DefaultName: "callback.conversation",
	}))
	return append(routes, router.TextRoutes(b, reg, router.TextOptions{})...)
}

// Start restarts the conversation.
func (b *Bot) Start(c tele.Context) error {
	userID, chatID := ids(c)
	return b.dispatch(c, conversation.StartEvent(userID, chatID))
}

// Callback feeds a button press into the conversation.
func (b *Bot) Callback(c tele.Context) error {
	userID, chatID := ids(c)
	data, msgID := callbacks.RawData(c)
	return b.dispatch(c, conversation.ParseCallback(userID, chatID, msgID, data))
}

// HandleText feeds free text into the conversation.
func (b *Bot) HandleText(c tele.Context) error {
	userID, chatID := ids(c)
	return b.dispatch(c, conversation.TextEvent(userID, chatID, c.Text()))
}

// Reload drops the cached product list and fetches it again.
func (b *Bot) Reload(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	n, err := b.catalog.Reload(ctx)
	if err != nil {
		if sendErr := tghelpers.SendText(c, session.FailureText); sendErr != nil {
			logger.Warn(ctx, "tg", "effect.fail",
				slog.String("status", "fail"),
				slog.String("action", "reload_notice"),
				slog.String("err", logger.SanitizeLimit(sendErr.Error(), 256)),
			)
			return errors.Join(err, fmt.Errorf("reload notice: %w", sendErr))
		}
		return err
	}
	text := fmt.Sprintf("%s *%d*", format.MustEscapeV2("Catalog reloaded. Products cached:"), n)
	return tghelpers.SendMDV2(c, text)
}

func (b *Bot) dispatch(c tele.Context, ev conversation.Event) error {
	ctx := tghelpers.BuildContext(c)
	reply, err := b.disp.Dispatch(ctx, ev)
	applyErr := b.apply(ctx, c, reply.Effects)
	if err != nil {
		return err
	}
	return applyErr
}

func (b *Bot) apply(ctx context.Context, c tele.Context, effects []conversation.Effect) error {
	var errs []error
	for _, eff := range effects {
		if err := b.applyOne(ctx, c, eff); err != nil {
			logger.Warn(ctx, "tg", "effect.fail",
				slog.String("status", "fail"),
				slog.String("action", eff.Kind.String()),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			errs = append(errs, fmt.Errorf("%s: %w", eff.Kind, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bot) applyOne(ctx context.Context, c tele.Context, eff conversation.Effect) error {
	markup := Markup(eff.Keyboard)
	switch eff.Kind {
	case conversation.EffectSendText:
		return tghelpers.SendText(c, eff.Text, &tele.SendOptions{ReplyMarkup: markup})
	case conversation.EffectSendPhoto:
		image, err := b.fetchImage(ctx, eff.ImageURL)
		if err != nil {
			logger.Warn(ctx, "tg", "photo.fallback",
				slog.String("status", "skip"),
				slog.String("key", eff.ImageURL),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			return tghelpers.SendText(c, eff.Text, &tele.SendOptions{ReplyMarkup: markup})
		}
		return tghelpers.SendPhoto(c, image, eff.Text, markup)
	case conversation.EffectEditKeyboard:
		return tghelpers.EditReplyMarkup(c, eff.MessageID, markup)
	case conversation.EffectDeleteMessage:
		return tghelpers.DeleteMessage(c, eff.MessageID)
	}
	return fmt.Errorf("unsupported effect %d", eff.Kind)
}

func (b *Bot) fetchImage(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("product has no picture")
	}
	if b.images == nil {
		return nil, errors.New("image source not configured")
	}
	return b.images.FetchImage(ctx, path)
}

// Markup converts a conversation keyboard into Telegram inline markup.
func Markup(kb conversation.Keyboard) *tele.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]keyboard.InlineBtn, len(kb))
	for i, row := range kb {
		rows[i] = make([]keyboard.InlineBtn, len(row))
		for j, btn := range row {
			rows[i][j] = keyboard.InlineBtn{Text: btn.Text, Data: btn.Data}
		}
	}
	return keyboard.InlineButtonsRows(rows...)
}

func ids(c tele.Context) (userID, chatID int64) {
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return userID, chatID
}
