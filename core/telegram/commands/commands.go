// Package commands describes slash commands before they reach the registry.
package commands

import tele "gopkg.in/telebot.v4"

// Command is one slash command. Aliases are matched by the text router
// only; Telegram's command menu shows the canonical name.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run only for the configured admin and never
	// appear in the public menu.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Listed reports whether the command belongs in the public command menu.
func (c Command) Listed() bool {
	return !c.Hidden && !c.AdminOnly
}
