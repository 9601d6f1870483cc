// Package testutil holds test doubles shared by the bot packages.
package testutil

import (
	"sync"

	telebot "gopkg.in/telebot.v3"
)

// Sent is one outgoing Send or Edit call.
type Sent struct {
	What    interface{}
	Options []interface{}
}

// Text returns the message text, or the caption for photos.
func (s Sent) Text() string {
	switch v := s.What.(type) {
	case string:
		return v
	case *telebot.Photo:
		return v.Caption
	default:
		return ""
	}
}

// Markup returns the first reply markup among the options.
func (s Sent) Markup() *telebot.ReplyMarkup {
	for _, opt := range s.Options {
		if m, ok := opt.(*telebot.ReplyMarkup); ok {
			return m
		}
	}
	return nil
}

// FakeContext implements the telebot.Context methods the bot uses. Calling any other
// method panics on the nil embedded interface.
type FakeContext struct {
	telebot.Context

	mu        sync.Mutex
	update    telebot.Update
	store     map[string]interface{}
	sent      []Sent
	edited    []Sent
	responses []*telebot.CallbackResponse

	SendErr error
}

// NewMessage builds a context for a text message from userID.
func NewMessage(updateID int, userID int64, text string) *FakeContext {
	sender := &telebot.User{ID: userID, LanguageCode: "en"}
	return &FakeContext{
		update: telebot.Update{
			ID: updateID,
			Message: &telebot.Message{
				ID:     updateID,
				Sender: sender,
				Chat:   &telebot.Chat{ID: userID},
				Text:   text,
			},
		},
		store: make(map[string]interface{}),
	}
}

// NewCallback builds a context for an inline button press.
func NewCallback(updateID int, userID int64, data string) *FakeContext {
	sender := &telebot.User{ID: userID, LanguageCode: "en"}
	return &FakeContext{
		update: telebot.Update{
			ID: updateID,
			Callback: &telebot.Callback{
				ID:     "cb",
				Sender: sender,
				Data:   data,
				Message: &telebot.Message{
					ID:   updateID,
					Chat: &telebot.Chat{ID: userID},
				},
			},
		},
		store: make(map[string]interface{}),
	}
}

// WithLanguage sets the sender's Telegram language code.
func (f *FakeContext) WithLanguage(code string) *FakeContext {
	if s := f.Sender(); s != nil {
		s.LanguageCode = code
	}
	return f
}

func (f *FakeContext) Update() telebot.Update { return f.update }

func (f *FakeContext) Message() *telebot.Message {
	if f.update.Callback != nil {
		return f.update.Callback.Message
	}
	return f.update.Message
}

func (f *FakeContext) Callback() *telebot.Callback { return f.update.Callback }

func (f *FakeContext) Sender() *telebot.User {
	switch {
	case f.update.Callback != nil:
		return f.update.Callback.Sender
	case f.update.Message != nil:
		return f.update.Message.Sender
	default:
		return nil
	}
}

func (f *FakeContext) Chat() *telebot.Chat {
	if m := f.Message(); m != nil {
		return m.Chat
	}
	return nil
}

func (f *FakeContext) Text() string {
	if f.update.Message != nil {
		return f.update.Message.Text
	}
	return ""
}

func (f *FakeContext) Send(what interface{}, opts ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, Sent{What: what, Options: opts})
	return f.SendErr
}

func (f *FakeContext) Edit(what interface{}, opts ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, Sent{What: what, Options: opts})
	return nil
}

func (f *FakeContext) Respond(resp ...*telebot.CallbackResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(resp) == 0 {
		resp = []*telebot.CallbackResponse{{}}
	}
	f.responses = append(f.responses, resp...)
	return nil
}

func (f *FakeContext) Get(key string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[key]
}

func (f *FakeContext) Set(key string, val interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = val
}

// Sent returns the Send calls so far.
func (f *FakeContext) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Edited returns the Edit calls so far.
func (f *FakeContext) Edited() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.edited...)
}

// Responses returns the callback answers so far.
func (f *FakeContext) Responses() []*telebot.CallbackResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*telebot.CallbackResponse(nil), f.responses...)
}

// LastText is the text of the most recent Send, or "" when nothing was sent.
func (f *FakeContext) LastText() string {
	sent := f.Sent()
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1].Text()
}
