package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/couponbot/core/logger"
	tghelpers "github.com/m3rciful/couponbot/core/telegram/helpers"
	"github.com/m3rciful/couponbot/core/telegram/keyboard"
	"github.com/m3rciful/couponbot/internal/dialogue"
	"github.com/m3rciful/couponbot/internal/issuance"

	tele "gopkg.in/telebot.v4"
)

// Callback keys of the admin panel buttons.
const (
	cbAdminStats = "admin_stats"
	cbAdminUsers = "admin_users"
)

// responder answers synchronously so that the rendered file still exists
// while it is uploaded and replies keep their order.
type responder struct{ c tele.Context }

func (r responder) SendText(_ context.Context, text string) error {
	return r.c.Send(text)
}

func (r responder) SendPhoto(_ context.Context, path, caption string) error {
	return r.c.Send(&tele.Photo{File: tele.FromDisk(path), Caption: caption})
}

func senderName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

func (a *App) handleStart(c tele.Context) error {
	u := c.Sender()
	if u == nil {
		return nil
	}
	_, err := a.dispatch(c, dialogue.Event{
		Kind:       dialogue.StartRequested,
		Identity:   u.ID,
		SenderName: senderName(u),
	})
	return err
}

// InProgress reports whether userID is in the middle of the name dialogue.
func (a *App) InProgress(userID int64) bool {
	return a.dialogue.InProgress(userID)
}

// ManagerHandler feeds text from a user in the dialogue to the controller.
// Anything other than a text message is answered with a reminder and leaves
// the session untouched.
func (a *App) ManagerHandler(c tele.Context) error {
	u := c.Sender()
	if u == nil {
		return nil
	}
	if msg := c.Message(); msg == nil || msg.Document != nil {
		return tghelpers.SendText(c, a.texts.TextExpected)
	}
	handled, err := a.dispatch(c, dialogue.Event{
		Kind:       dialogue.TextReceived,
		Identity:   u.ID,
		SenderName: senderName(u),
		Text:       c.Text(),
	})
	if err != nil || handled {
		return err
	}
	return a.UnknownText()(c)
}

func (a *App) dispatch(c tele.Context, ev dialogue.Event) (bool, error) {
	ctx := tghelpers.BuildContext(c)
	handled, err := a.dialogue.Handle(ctx, ev, responder{c: c})
	if err != nil {
		return handled, a.unavailable(c, err)
	}
	return handled, nil
}

// unavailable tells the user to come back later and returns err for the
// handler summary.
func (a *App) unavailable(c tele.Context, err error) error {
	if errors.Is(err, issuance.ErrStoreUnavailable) {
		if sendErr := c.Send(a.texts.Unavailable); sendErr != nil {
			logger.Warn(tghelpers.BuildContext(c), logger.CompTG, "reply.unavailable",
				slog.String("err", sendErr.Error()),
			)
		}
	}
	return err
}

func (a *App) handleAdmin(c tele.Context) error {
	t := a.reports.Texts()
	markup := keyboard.InlineColumn(
		keyboard.InlineBtn{Text: t.StatsButton, Unique: cbAdminStats},
		keyboard.InlineBtn{Text: t.UsersButton, Unique: cbAdminUsers},
	)
	return tghelpers.SendText(c, t.Welcome, &tele.SendOptions{ReplyMarkup: markup})
}

func (a *App) handleStats(c tele.Context) error {
	text, err := a.reports.StatsText(tghelpers.BuildContext(c))
	if err != nil {
		return a.unavailable(c, err)
	}
	return tghelpers.SendText(c, text)
}

func (a *App) handleUsers(c tele.Context) error {
	msgs, markdown, err := a.reports.UserList(tghelpers.BuildContext(c))
	if err != nil {
		return a.unavailable(c, err)
	}
	if !markdown {
		return tghelpers.SendText(c, msgs[0])
	}
	return tghelpers.SendMDBatch(c, msgs)
}

// UnknownText answers text outside the dialogue with a hint.
func (a *App) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, a.texts.Hint)
	}
}

// UnknownDocument answers files the same way as stray text.
func (a *App) UnknownDocument() tele.HandlerFunc {
	return a.UnknownText()
}

// UnknownCallback answers buttons that no longer map to an action.
func (a *App) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: a.texts.UnknownAction})
	}
}
