// Package dialogue drives the conversation that collects a full name and
// hands out the coupon at most once per user.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/couponbot/core/logger"
	"github.com/m3rciful/couponbot/core/telegram/state"
	"github.com/m3rciful/couponbot/internal/issuance"
	"github.com/m3rciful/couponbot/internal/render"
	"github.com/m3rciful/couponbot/internal/validate"
)

// AwaitingName is the session state between the greeting and an accepted name.
const AwaitingName state.State = "awaiting_name"

// Kind tags an inbound Event.
type Kind int

const (
	StartRequested Kind = iota + 1
	TextReceived
)

func (k Kind) String() string {
	switch k {
	case StartRequested:
		return "start"
	case TextReceived:
		return "text"
	}
	return "unknown"
}

// Event is one inbound update. SenderName is used for the greeting, Text for
// TextReceived only.
type Event struct {
	Kind       Kind
	Identity   int64
	SenderName string
	Text       string
}

// Responder delivers replies to the user that triggered the event. Calls must
// complete in order: the image file is removed once SendPhoto returns.
type Responder interface {
	SendText(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, path, caption string) error
}

// Renderer produces the coupon image for an accepted name.
type Renderer interface {
	Render(ctx context.Context, fullName string) (*render.Artifact, error)
}

// Issuer is the part of the issuance service the dialogue depends on.
type Issuer interface {
	EnsureUser(ctx context.Context, id int64, hint string) (issuance.User, error)
	CheckClaimable(ctx context.Context, id int64) error
	RecordIssuance(ctx context.Context, id int64) error
}

// Observer receives dialogue outcomes, e.g. for metrics. Any method may be
// called concurrently.
type Observer interface {
	NameRejected(reason string)
	RenderFinished(took time.Duration, err error)
	CouponIssued()
}

type nopObserver struct{}

func (nopObserver) NameRejected(string)                 {}
func (nopObserver) RenderFinished(time.Duration, error) {}
func (nopObserver) CouponIssued()                       {}

const defaultRenderTimeout = 15 * time.Second

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Texts         Texts
	RenderTimeout time.Duration
	Sessions      state.Manager
	Observer      Observer
}

// Controller owns the per-user dialogue sessions.
type Controller struct {
	issuer   Issuer
	renderer Renderer
	sessions state.Manager
	texts    Texts
	timeout  time.Duration
	obs      Observer
	locks    *keyedMutex
}

// New builds a Controller.
func New(issuer Issuer, renderer Renderer, opts Options) *Controller {
	if opts.Texts.Greeting == "" {
		opts.Texts = DefaultTexts()
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = defaultRenderTimeout
	}
	if opts.Sessions == nil {
		opts.Sessions = state.NewMemoryManager()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Controller{
		issuer:   issuer,
		renderer: renderer,
		sessions: opts.Sessions,
		texts:    opts.Texts,
		timeout:  opts.RenderTimeout,
		obs:      opts.Observer,
		locks:    newKeyedMutex(),
	}
}

// InProgress reports whether id is expected to send their name.
func (c *Controller) InProgress(id int64) bool {
	return c.sessions.InProgress(id)
}

// ActiveSessions returns how many users are currently asked for their name.
func (c *Controller) ActiveSessions() int {
	return c.sessions.Len()
}

// Session returns the dialogue state of id.
func (c *Controller) Session(id int64) state.State {
	return c.sessions.GetState(id)
}

// Handle processes ev and answers through out. handled is false when the event
// is not part of the dialogue (text outside a session) so the caller may fall
// back. Store failures are returned wrapped in issuance.ErrStoreUnavailable.
func (c *Controller) Handle(ctx context.Context, ev Event, out Responder) (handled bool, err error) {
	switch ev.Kind {
	case StartRequested:
		return true, c.start(ctx, ev, out)
	case TextReceived:
		if !c.sessions.InProgress(ev.Identity) {
			return false, nil
		}
		return true, c.submit(ctx, ev, out)
	}
	return false, fmt.Errorf("dialogue: unknown event kind %d", ev.Kind)
}

func (c *Controller) start(ctx context.Context, ev Event, out Responder) error {
	u, err := c.issuer.EnsureUser(ctx, ev.Identity, "")
	if err != nil {
		return err
	}
	if u.HasReceivedCoupon {
		c.sessions.ClearState(ev.Identity)
		logger.Info(ctx, logger.CompDialogue, "start.already_claimed", slog.String("outcome", "rejected"))
		return out.SendText(ctx, c.texts.AlreadyClaimed)
	}
	if err := out.SendText(ctx, c.texts.greeting(ev.SenderName)); err != nil {
		return err
	}
	c.sessions.SetState(ev.Identity, AwaitingName)
	logger.Debug(ctx, logger.CompDialogue, "start.prompted", slog.String("state", string(AwaitingName)))
	return nil
}

func (c *Controller) submit(ctx context.Context, ev Event, out Responder) error {
	name, err := validate.Name(ev.Text)
	if err != nil {
		var rej *validate.RejectionError
		if !errors.As(err, &rej) {
			return err
		}
		c.obs.NameRejected(string(rej.Reason))
		logger.Info(ctx, logger.CompDialogue, "name.rejected",
			slog.String("outcome", "rejected"),
			slog.String("reason", string(rej.Reason)),
			slog.String("word", logger.SanitizeLimit(rej.Word, 64)),
		)
		return out.SendText(ctx, c.texts.rejection(rej))
	}

	unlock := c.locks.Lock(ev.Identity)
	defer unlock()

	switch err := c.issuer.CheckClaimable(ctx, ev.Identity); {
	case errors.Is(err, issuance.ErrAlreadyIssued):
		c.sessions.ClearState(ev.Identity)
		logger.Info(ctx, logger.CompDialogue, "name.already_claimed", slog.String("outcome", "rejected"))
		return out.SendText(ctx, c.texts.AlreadyClaimed)
	case err != nil:
		return err
	}

	if _, err := c.issuer.EnsureUser(ctx, ev.Identity, name); err != nil {
		return err
	}
	if err := out.SendText(ctx, c.texts.InProgress); err != nil {
		return err
	}

	start := time.Now()
	art, err := c.render(ctx, name)
	c.obs.RenderFinished(time.Since(start), err)
	if err != nil {
		logger.Warn(ctx, logger.CompDialogue, "render.failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("render", time.Since(start)),
		)
		return out.SendText(ctx, c.texts.RenderFailed)
	}
	defer func() {
		if err := art.Release(); err != nil {
			logger.Warn(ctx, logger.CompRender, "artifact.release", slog.String("err", err.Error()))
		}
	}()

	if err := out.SendPhoto(ctx, art.Path, c.texts.Caption); err != nil {
		logger.Warn(ctx, logger.CompDialogue, "photo.failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return out.SendText(ctx, c.texts.RenderFailed)
	}
	if err := out.SendText(ctx, c.texts.Congratulation); err != nil {
		logger.Warn(ctx, logger.CompDialogue, "congratulation.failed", slog.String("err", err.Error()))
	}

	if err := c.issuer.RecordIssuance(ctx, ev.Identity); err != nil {
		return err
	}
	c.obs.CouponIssued()
	c.sessions.ClearState(ev.Identity)
	logger.Info(ctx, logger.CompDialogue, "coupon.delivered",
		slog.String("outcome", "ok"),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// render runs the renderer under the configured timeout. A renderer that
// ignores cancellation is abandoned and its late artifact released.
func (c *Controller) render(ctx context.Context, name string) (*render.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		art *render.Artifact
		err error
	}
	done := make(chan result, 1)
	go func() {
		art, err := c.renderer.Render(ctx, name)
		done <- result{art: art, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && res.art == nil {
			return nil, errors.New("render: no artifact")
		}
		return res.art, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.art != nil {
				_ = res.art.Release()
			}
		}()
		return nil, fmt.Errorf("render: %w", ctx.Err())
	}
}
