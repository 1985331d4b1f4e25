package router

import (
	"time"

	tg "github.com/m3rciful/couponbot/core/telegram"
	"github.com/m3rciful/couponbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation hook consulted before command lookup and fallbacks.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text and document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes routes plain text to the FSM when a conversation is active,
// otherwise to a matching command, the registry fallback or UnknownText.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	inConversation := func(c tele.Context) bool {
		return fsm != nil && c.Sender() != nil && fsm.InProgress(c.Sender().ID)
	}

	text := func(c tele.Context) error {
		start := time.Now()
		if inConversation(c) {
			return handleWithSummary(c, "fsm", start, func() error { return fsm.ManagerHandler(c) })
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error { return cmd.Handler(c) })
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}
		return handleWithSummary(c, "unknown_text", start, func() error {
			if opts.UnknownText == nil {
				return errSkipped
			}
			return opts.UnknownText(c)
		})
	}

	document := func(c tele.Context) error {
		start := time.Now()
		if inConversation(c) {
			return handleWithSummary(c, "fsm_document", start, func() error { return fsm.ManagerHandler(c) })
		}
		return handleWithSummary(c, "unexpected_document", start, func() error {
			if opts.UnknownDocument == nil {
				return errSkipped
			}
			return opts.UnknownDocument(c)
		})
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnDocument, Handler: wrap(document)},
	}
}
