package bot

import (
	"log/slog"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/handlers"
	"github.com/Proton-105/trx-referral-bot/internal/bot/keyboard"
)

type route struct {
	action  string
	handler handlers.Handler
}

// Router dispatches commands, reply-keyboard buttons, callbacks and state-aware free text.
type Router struct {
	mu             sync.RWMutex
	commands       map[string]route
	texts          map[string]route
	callbacks      map[string]route
	dispatcher     *Dispatcher
	defaultHandler handlers.Handler
	middlewares    []handlers.Middleware
	log            *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(dispatcher *Dispatcher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:    make(map[string]route),
		texts:       make(map[string]route),
		callbacks:   make(map[string]route),
		dispatcher:  dispatcher,
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// RegisterCommand registers a handler for a slash command such as "/start".
func (r *Router) RegisterCommand(cmd, action string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = route{action: action, handler: h}
}

// RegisterText registers a handler for an exact reply-keyboard button label.
func (r *Router) RegisterText(text, action string, h handlers.Handler) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts[text] = route{action: action, handler: h}
}

// RegisterCallback registers a handler for callback data "<unique>[:payload]".
func (r *Router) RegisterCallback(unique, action string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[unique] = route{action: action, handler: h}
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// SetDefault sets the fallback handler for free text outside any conversation state.
func (r *Router) SetDefault(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = h
}

// Route directs the incoming update through the middleware chain to its handler.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	rt, ok := r.resolve(c)
	if !ok {
		return nil
	}

	c.Set(handlers.ActionKey, rt.action)
	wrapped := r.applyMiddlewares(rt.handler)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

func (r *Router) resolve(c telebot.Context) (route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cb := c.Callback(); cb != nil {
		unique, _, err := keyboard.DecodeCallback(cb.Data)
		if err != nil {
			r.log.Info("empty callback data ignored")
			return route{}, false
		}
		rt, ok := r.callbacks[unique]
		if !ok {
			r.log.Info("no callback handler found", "data", cb.Data)
		}
		return rt, ok
	}

	text := strings.TrimSpace(c.Text())
	if strings.HasPrefix(text, "/") {
		if rt, ok := r.commands[commandName(text)]; ok {
			return rt, true
		}
	}

	if rt, ok := r.texts[text]; ok {
		return rt, true
	}

	return route{action: ActionText, handler: r.handleText}, true
}

// handleText gives an open conversation state the first chance at free text.
func (r *Router) handleText(c telebot.Context) error {
	if r.dispatcher != nil {
		handled, err := r.dispatcher.Dispatch(c)
		if err != nil || handled {
			return err
		}
	}

	r.mu.RLock()
	h := r.defaultHandler
	r.mu.RUnlock()

	if h == nil {
		return nil
	}
	return h(c)
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	if h == nil {
		return nil
	}

	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}

// commandName extracts "/cmd" from "/cmd@bot_name args".
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}
