package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/conversation"
	"github.com/m3rciful/shopbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

type sent struct {
	what any
	opts []any
}

type fakeAPI struct {
	tele.API
	edited  []tele.StoredMessage
	markups []*tele.ReplyMarkup
	deleted []tele.StoredMessage
}

func (a *fakeAPI) EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error) {
	a.edited = append(a.edited, msg.(tele.StoredMessage))
	a.markups = append(a.markups, markup)
	return &tele.Message{}, nil
}

func (a *fakeAPI) Delete(msg tele.Editable) error {
	a.deleted = append(a.deleted, msg.(tele.StoredMessage))
	return nil
}

type fakeContext struct {
	tele.Context
	sendErr error
	sender  *tele.User
	chat    *tele.Chat
	cb      *tele.Callback
	text    string
	store   map[string]any
	sent    []sent
	api     *fakeAPI
}

func newContext() *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: 42},
		chat:   &tele.Chat{ID: 10},
		store:  make(map[string]any),
		api:    &fakeAPI{},
	}
}

func (c *fakeContext) Sender() *tele.User { return c.sender }
func (c *fakeContext) Chat() *tele.Chat { return c.chat }
func (c *fakeContext) Callback() *tele.Callback { return c.cb }
func (c *fakeContext) Text() string { return c.text }
func (c *fakeContext) Update() tele.Update { return tele.Update{ID: 7} }
func (c *fakeContext) Get(key string) any { return c.store[key] }
func (c *fakeContext) Set(key string, v any) { c.store[key] = v }
func (c *fakeContext) Bot() tele.API { return c.api }
func (c *fakeContext) Respond(...*tele.CallbackResponse) error { return nil }

func (c *fakeContext) Send(what any, opts ...any) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sent{what: what, opts: opts})
	return nil
}

type fakeDispatcher struct {
	events []conversation.Event
	reply  session.Reply
	err    error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, ev conversation.Event) (session.Reply, error) {
	d.events = append(d.events, ev)
	return d.reply, d.err
}

type fakeImages struct {
	data []byte
	err  error
	path string
}

func (f *fakeImages) FetchImage(_ context.Context, path string) ([]byte, error) {
	f.path = path
	return f.data, f.err
}

type fakeReloader struct {
	n   int
	err error
}

func (f fakeReloader) Reload(context.Context) (int, error) { return f.n, f.err }

func markupOf(t *testing.T, s sent) *tele.ReplyMarkup {
	t.Helper()
	for _, o := range s.opts {
		if so, ok := o.(*tele.SendOptions); ok {
			return so.ReplyMarkup
		}
	}
	return nil
}

func TestStartSendsMenu(t *testing.T) {
	disp := &fakeDispatcher{reply: session.Reply{Effects: []conversation.Effect{
		conversation.SendText(10, conversation.MenuText, conversation.MenuKeyboard([]catalog.Product{{ID: "7", Title: "Tuna"}})),
	}}}
	b := New(disp, nil, nil)
	c := newContext()

	require.NoError(t, b.Start(c))
	require.Len(t, disp.events, 1)
	assert.Equal(t, conversation.EventStart, disp.events[0].Kind)
	assert.Equal(t, int64(42), disp.events[0].UserID)
	assert.Equal(t, int64(10), disp.events[0].ChatID)

	require.Len(t, c.sent, 1)
	assert.Equal(t, conversation.MenuText, c.sent[0].what)
	rm := markupOf(t, c.sent[0])
	require.NotNil(t, rm)
	assert.Equal(t, "7", rm.InlineKeyboard[0][0].Data)
	assert.Equal(t, conversation.PayloadShowCart, rm.InlineKeyboard[1][0].Data)
}

func TestCallbackEditsStepper(t *testing.T) {
	disp := &fakeDispatcher{reply: session.Reply{Effects: []conversation.Effect{{
		Kind:      conversation.EffectEditKeyboard,
		ChatID:    10,
		MessageID: 56,
		Keyboard:  conversation.ProductKeyboard("7", 2),
	}}}}
	b := New(disp, nil, nil)
	c := newContext()
	c.cb = &tele.Callback{Data: "increase_7", Message: &tele.Message{ID: 56}}

	require.NoError(t, b.Callback(c))
	require.Len(t, disp.events, 1)
	ev := disp.events[0]
	assert.Equal(t, conversation.EventIncrease, ev.Kind)
	assert.Equal(t, "7", ev.ProductID)
	assert.Equal(t, 56, ev.MessageID)

	require.Len(t, c.api.edited, 1)
	assert.Equal(t, tele.StoredMessage{MessageID: "56", ChatID: 10}, c.api.edited[0])
	assert.Equal(t, "2", c.api.markups[0].InlineKeyboard[0][1].Text)
}

func TestPhotoAndDelete(t *testing.T) {
	disp := &fakeDispatcher{reply: session.Reply{Effects: []conversation.Effect{
		{Kind: conversation.EffectSendPhoto, ChatID: 10, Text: "Tuna:\n\nFresh", ImageURL: "/uploads/tuna.jpg", Keyboard: conversation.ProductKeyboard("7", 1)},
		{Kind: conversation.EffectDeleteMessage, ChatID: 10, MessageID: 55},
	}}}
	images := &fakeImages{data: []byte{0xff, 0xd8}}
	b := New(disp, images, nil)
	c := newContext()
	c.cb = &tele.Callback{Data: "7", Message: &tele.Message{ID: 55}}

	require.NoError(t, b.Callback(c))
	assert.Equal(t, "/uploads/tuna.jpg", images.path)
	require.Len(t, c.sent, 1)
	photo, ok := c.sent[0].what.(*tele.Photo)
	require.True(t, ok)
	assert.Equal(t, "Tuna:\n\nFresh", photo.Caption)
	require.Len(t, c.api.deleted, 1)
	assert.Equal(t, "55", c.api.deleted[0].MessageID)
}

func TestPhotoFallsBackToText(t *testing.T) {
	disp := &fakeDispatcher{reply: session.Reply{Effects: []conversation.Effect{
		{Kind: conversation.EffectSendPhoto, ChatID: 10, Text: "Tuna", ImageURL: "/uploads/tuna.jpg", Keyboard: conversation.ProductKeyboard("7", 1)},
	}}}
	b := New(disp, &fakeImages{err: errors.New("404")}, nil)
	c := newContext()
	c.cb = &tele.Callback{Data: "7"}

	require.NoError(t, b.Callback(c))
	require.Len(t, c.sent, 1)
	assert.Equal(t, "Tuna", c.sent[0].what)
	assert.NotNil(t, markupOf(t, c.sent[0]))
}

func TestDispatchErrorStillDeliversNotice(t *testing.T) {
	disp := &fakeDispatcher{
		reply: session.Reply{Effects: []conversation.Effect{conversation.SendText(10, session.NotUnderstoodText, nil)}},
		err:   &conversation.EventError{State: conversation.StateBrowsingMenu},
	}
	b := New(disp, nil, nil)
	c := newContext()
	c.text = "hello"

	err := b.HandleText(c)
	require.ErrorIs(t, err, conversation.ErrUnhandledEvent)
	assert.Equal(t, conversation.EventText, disp.events[0].Kind)
	assert.Equal(t, "hello", disp.events[0].Payload)
	require.Len(t, c.sent, 1)
	assert.Equal(t, session.NotUnderstoodText, c.sent[0].what)
}

func TestReload(t *testing.T) {
	b := New(&fakeDispatcher{}, nil, fakeReloader{n: 3})
	c := newContext()
	require.NoError(t, b.Reload(c))
	require.Len(t, c.sent, 1)
	assert.Equal(t, `Catalog reloaded\. Products cached: *3*`, c.sent[0].what)

	b = New(&fakeDispatcher{}, nil, fakeReloader{err: catalog.ErrUnavailable})
	c = newContext()
	assert.ErrorIs(t, b.Reload(c), catalog.ErrUnavailable)
	assert.Equal(t, session.FailureText, c.sent[0].what)
}

func TestReloadNoticeFailureIsReported(t *testing.T) {
	sendErr := errors.New("telegram: chat not found (400)")
	b := New(&fakeDispatcher{}, nil, fakeReloader{err: catalog.ErrUnavailable})
	c := newContext()
	c.sendErr = sendErr

	err := b.Reload(c)
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
	assert.ErrorIs(t, err, sendErr)
	assert.Empty(t, c.sent)
}

func TestRegisterCommands(t *testing.T) {
	reg := tg.NewRegistry()
	b := New(&fakeDispatcher{}, nil, nil)
	require.NoError(t, b.Register(reg))
	assert.Error(t, b.Register(reg), "duplicate commands are rejected")

	_, start, ok := reg.LookupCommand("/start")
	require.True(t, ok)
	assert.False(t, start.AdminOnly)
	_, reload, ok := reg.LookupCommand("reload")
	require.True(t, ok)
	assert.True(t, reload.AdminOnly)

	visible := reg.ListCommands(true)
	require.Len(t, visible, 1)
	assert.Equal(t, "start", visible[0].Text)
}

func TestMarkupEmpty(t *testing.T) {
	assert.Nil(t, Markup(nil))
}
