package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider supplies the handlers for updates that match no route.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
