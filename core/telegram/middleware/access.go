package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions configures the admin-only gate.
type AdminOptions struct {
	// AdminID is the only Telegram user allowed through. Zero disables admin access.
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether userID matches a configured admin.
func (o AdminOptions) IsAdmin(userID int64) bool {
	return o.AdminID != 0 && userID == o.AdminID
}

// AdminOnlyMiddleware lets only the configured admin reach next.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if sender := c.Sender(); sender != nil && opts.IsAdmin(sender.ID) {
				return next(c)
			}
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
