package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is an inline button. Unique is the callback key the router
// dispatches on; Data travels after it as the payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

func (b InlineBtn) inline(m *tele.ReplyMarkup) tele.InlineButton {
	if b.Data == "" {
		return *m.Data(b.Text, b.Unique).Inline()
	}
	return *m.Data(b.Text, b.Unique, b.Data).Inline()
}

// InlineColumn stacks the buttons one per row.
func InlineColumn(buttons ...InlineBtn) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.InlineKeyboard = make([][]tele.InlineButton, 0, len(buttons))
	for _, b := range buttons {
		m.InlineKeyboard = append(m.InlineKeyboard, []tele.InlineButton{b.inline(m)})
	}
	return m
}
