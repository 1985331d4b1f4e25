// Package bot connects the coupon dialogue and the admin panel to Telegram.
package bot

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/couponbot/core/bootstrap"
	"github.com/m3rciful/couponbot/internal/admin"
	"github.com/m3rciful/couponbot/internal/config"
	"github.com/m3rciful/couponbot/internal/dialogue"
	"github.com/m3rciful/couponbot/internal/issuance"
	"github.com/m3rciful/couponbot/internal/metrics"
	"github.com/m3rciful/couponbot/internal/ops"
	"github.com/m3rciful/couponbot/internal/render"
	"github.com/m3rciful/couponbot/internal/store"
	"github.com/m3rciful/couponbot/migrations"
)

// Texts are the bot-level replies that sit outside the dialogue.
type Texts struct {
	StartDescription string
	AdminDescription string
	Unavailable      string
	Hint             string
	UnknownAction    string
	TextExpected     string
}

// DefaultTexts returns the Russian replies.
func DefaultTexts() Texts {
	return Texts{
		StartDescription: "Получить купон",
		AdminDescription: "Админ-панель",
		Unavailable:      "Сервис временно недоступен. Пожалуйста, попробуйте позже.",
		Hint:             "Чтобы получить купон, отправьте /start",
		UnknownAction:    "Неизвестное действие",
		TextExpected:     "Пожалуйста, отправьте ФИО текстовым сообщением.",
	}
}

// App holds every long-lived component of the bot.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	users    *store.Users
	dialogue *dialogue.Controller
	reports  *admin.Reporter
	metrics  *metrics.Recorder
	ops      *ops.Server
	texts    Texts
}

// Bootstrap prepares logging and the migrated database, then builds the App.
func Bootstrap(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	rnd := render.New(render.Options{
		TemplatePath: cfg.Coupon.TemplatePath,
		FontPath:     cfg.Coupon.FontPath,
		OutputDir:    cfg.Coupon.OutputDir,
		FontSize:     cfg.Coupon.FontSize,
		X:            cfg.Coupon.X,
		Y:            cfg.Coupon.Y,
		LineHeight:   cfg.Coupon.LineHeight,
	})
	return assemble(cfg, res.DB, rnd), nil
}

func assemble(cfg *config.Config, db *sqlx.DB, rnd dialogue.Renderer) *App {
	users := store.NewUsers(db)
	svc := issuance.NewService(users)
	rec := metrics.New()

	ctl := dialogue.New(svc, rnd, dialogue.Options{
		RenderTimeout: cfg.Coupon.RenderTimeout(),
		Observer:      rec,
	})
	rec.TrackSessions(ctl.ActiveSessions)

	return &App{
		cfg:      cfg,
		db:       db,
		users:    users,
		dialogue: ctl,
		reports:  admin.NewReporter(svc, admin.Texts{}),
		metrics:  rec,
		ops:      ops.NewServer(cfg.Ops.Listen, users, rec.Handler()),
		texts:    DefaultTexts(),
	}
}

// Close releases the database handle.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *App) startOps(ctx context.Context) error {
	if err := a.ops.Start(ctx); err != nil {
		return fmt.Errorf("bot: ops server: %w", err)
	}
	return nil
}
