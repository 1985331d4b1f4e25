package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command the bot answers.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are gated by the configured admin id and never
	// shown in the public menu.
	AdminOnly bool
	// Hidden commands work but stay out of the menu.
	Hidden  bool
	Aliases []string
}

// Visible reports whether the command belongs in the Telegram menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}

// Matches reports whether name is one of the command aliases, with or
// without the leading slash.
func (c Command) Matches(name string) bool {
	for _, alias := range c.Aliases {
		if alias == name || "/"+alias == name {
			return true
		}
	}
	return false
}
