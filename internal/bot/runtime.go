package bot

import (
	"context"

	coretelegram "github.com/m3rciful/couponbot/core/telegram"
	"github.com/m3rciful/couponbot/core/telegram/commands"
	"github.com/m3rciful/couponbot/core/telegram/middleware"
	"github.com/m3rciful/couponbot/core/telegram/router"
	tgsender "github.com/m3rciful/couponbot/core/telegram/sender"
	"github.com/m3rciful/couponbot/core/telegram/ui"
)

var (
	_ router.FSM          = (*App)(nil)
	_ ui.FallbackProvider = (*App)(nil)
)

// Registry declares the bot commands and admin callbacks.
func (a *App) Registry() (*coretelegram.Registry, error) {
	reg := coretelegram.NewRegistry()
	if err := reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: a.texts.StartDescription,
	}); err != nil {
		return nil, err
	}
	if err := reg.RegisterCommand("/admin", commands.Command{
		Handler:     a.handleAdmin,
		Description: a.texts.AdminDescription,
		AdminOnly:   true,
	}); err != nil {
		return nil, err
	}

	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{AdminID: a.cfg.Telegram.AdminID})
	if err := reg.RegisterCallback(cbAdminStats, adminOnly(a.handleStats)); err != nil {
		return nil, err
	}
	if err := reg.RegisterCallback(cbAdminUsers, adminOnly(a.handleUsers)); err != nil {
		return nil, err
	}

	var fb ui.FallbackProvider = a
	reg.SetCallbackNotFound(fb.UnknownCallback())
	return reg, nil
}

// TelegramRunOptions wires the App into the core Telegram runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg, err := a.Registry()
	if err != nil {
		return coretelegram.RunOptions{}, err
	}
	core := a.cfg.CoreConfig()
	var fb ui.FallbackProvider = a

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: fb.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(a, reg, router.TextOptions{
		UnknownText:     fb.UnknownText(),
		UnknownDocument: fb.UnknownDocument(),
	})...)

	return coretelegram.RunOptions{
		Config:   core,
		Registry: reg,
		DispatcherOptions: tgsender.Options{
			OnResult: a.metrics.SendResult,
		},
		Middlewares: coretelegram.DefaultMiddlewares(core, coretelegram.MiddlewareOptions{}),
		Routes:      routes,
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			router.SetObserver(a.metrics.HandlerDone)
			return a.startOps(ctx)
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			router.SetObserver(nil)
			return a.ops.Stop(ctx)
		},
	}, nil
}
