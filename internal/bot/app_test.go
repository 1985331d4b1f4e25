package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	coreconfig "github.com/m3rciful/couponbot/core/config"
	coredatabase "github.com/m3rciful/couponbot/core/database"
	"github.com/m3rciful/couponbot/internal/config"
	"github.com/m3rciful/couponbot/internal/render"
	"github.com/m3rciful/couponbot/migrations"

	tele "gopkg.in/telebot.v4"
)

const adminID = 99

type fileRenderer struct{ dir string }

func (r fileRenderer) Render(_ context.Context, name string) (*render.Artifact, error) {
	f, err := os.CreateTemp(r.dir, "coupon_*.png")
	if err != nil {
		return nil, err
	}
	_, _ = f.WriteString(name)
	_ = f.Close()
	return &render.Artifact{Path: f.Name()}, nil
}

// fakeContext records what the handlers send.
type fakeContext struct {
	tele.Context
	update    tele.Update
	store     map[string]any
	sent      []any
	responded []*tele.CallbackResponse
	// photoOnDisk records whether each photo still existed when sent.
	photoOnDisk []bool
}

func newMessage(userID int64, text string) *fakeContext {
	return &fakeContext{
		update: tele.Update{
			ID: int(userID),
			Message: &tele.Message{
				Sender: &tele.User{ID: userID, FirstName: "Иван", LastName: "Петров"},
				Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
				Text:   text,
			},
		},
		store: map[string]any{},
	}
}

func (f *fakeContext) Update() tele.Update    { return f.update }
func (f *fakeContext) Sender() *tele.User     { return f.update.Message.Sender }
func (f *fakeContext) Chat() *tele.Chat       { return f.update.Message.Chat }
func (f *fakeContext) Text() string           { return f.update.Message.Text }
func (f *fakeContext) Message() *tele.Message { return f.update.Message }
func (f *fakeContext) Get(key string) any     { return f.store[key] }
func (f *fakeContext) Set(key string, v any)  { f.store[key] = v }

func (f *fakeContext) Send(what any, _ ...any) error {
	if p, ok := what.(*tele.Photo); ok {
		_, err := os.Stat(p.File.FileLocal)
		f.photoOnDisk = append(f.photoOnDisk, err == nil)
	}
	f.sent = append(f.sent, what)
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	f.responded = append(f.responded, resp...)
	return nil
}

func (f *fakeContext) texts() []string {
	var out []string
	for _, s := range f.sent {
		if text, ok := s.(string); ok {
			out = append(out, text)
		}
	}
	return out
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	dbCfg := coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "couponbot.db"),
	}
	if err := coredatabase.RunMigrations(dbCfg, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := coredatabase.Connect(dbCfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	cfg := &config.Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "test", AdminID: adminID},
		},
		Database: dbCfg,
	}
	app := assemble(cfg, db, fileRenderer{dir: t.TempDir()})
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestCouponFlow(t *testing.T) {
	app := newTestApp(t)

	start := newMessage(7, "/start")
	if err := app.handleStart(start); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := start.texts(); len(got) != 1 || !strings.Contains(got[0], "Здравствуйте, Иван Петров!") {
		t.Fatalf("greeting = %q", got)
	}
	if !app.InProgress(7) {
		t.Fatal("user must await a name after /start")
	}

	submit := newMessage(7, "Петров Иван Сергеевич")
	if err := app.ManagerHandler(submit); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(submit.photoOnDisk) != 1 || !submit.photoOnDisk[0] {
		t.Fatalf("photo sends = %v, want one photo present on disk", submit.photoOnDisk)
	}
	if len(submit.sent) != 3 {
		t.Fatalf("sent %d messages, want progress, photo and congratulation", len(submit.sent))
	}
	photo, ok := submit.sent[1].(*tele.Photo)
	if !ok {
		t.Fatalf("second message = %T, want photo", submit.sent[1])
	}
	if _, err := os.Stat(photo.File.FileLocal); !os.IsNotExist(err) {
		t.Fatalf("coupon file must be removed after delivery, stat err = %v", err)
	}
	got := submit.texts()
	if got[0] != "Ваш купон готовится..." || !strings.Contains(got[1], "Поздравляем") {
		t.Fatalf("texts around photo = %q", got)
	}
	if app.InProgress(7) {
		t.Fatal("session must end after issuance")
	}

	again := newMessage(7, "/start")
	if err := app.handleStart(again); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if got := again.texts(); len(got) != 1 || got[0] != "Вы уже получили свой купон." {
		t.Fatalf("second start = %q", got)
	}
}

func TestRejectedNameKeepsSession(t *testing.T) {
	app := newTestApp(t)
	_ = app.handleStart(newMessage(8, "/start"))

	bad := newMessage(8, "Иван Петров")
	if err := app.ManagerHandler(bad); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := bad.texts(); len(got) != 1 || !strings.Contains(got[0], "трех слов") {
		t.Fatalf("rejection = %q", got)
	}
	if !app.InProgress(8) {
		t.Fatal("user must stay in the dialogue after a rejection")
	}
}

func TestDocumentDuringDialogueKeepsSession(t *testing.T) {
	app := newTestApp(t)
	_ = app.handleStart(newMessage(13, "/start"))

	doc := newMessage(13, "")
	doc.update.Message.Document = &tele.Document{FileName: "passport.pdf"}
	if err := app.ManagerHandler(doc); err != nil {
		t.Fatalf("document: %v", err)
	}
	if got := doc.texts(); len(got) != 1 || got[0] != app.texts.TextExpected {
		t.Fatalf("reply = %q, want the text reminder", got)
	}
	if !app.InProgress(13) {
		t.Fatal("a document must not end the dialogue")
	}

	submit := newMessage(13, "Петров Иван Сергеевич")
	if err := app.ManagerHandler(submit); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(submit.photoOnDisk) != 1 {
		t.Fatalf("photos = %d, want 1 after the reminder", len(submit.photoOnDisk))
	}
}

func TestIdleTextGetsHint(t *testing.T) {
	app := newTestApp(t)
	c := newMessage(9, "привет")
	if err := app.ManagerHandler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := c.texts(); len(got) != 1 || got[0] != app.texts.Hint {
		t.Fatalf("idle reply = %q", got)
	}
}

func TestStoreFailureAnswersUnavailable(t *testing.T) {
	app := newTestApp(t)
	_ = app.db.Close()

	c := newMessage(10, "/start")
	if err := app.handleStart(c); err == nil {
		t.Fatal("expected an error when the store is closed")
	}
	if got := c.texts(); len(got) != 1 || got[0] != app.texts.Unavailable {
		t.Fatalf("reply = %q", got)
	}
}

func TestAdminReports(t *testing.T) {
	app := newTestApp(t)
	_ = app.handleStart(newMessage(11, "/start"))
	_ = app.ManagerHandler(newMessage(11, "Петров Иван Сергеевич"))
	_ = app.handleStart(newMessage(12, "/start"))

	stats := newMessage(adminID, "")
	if err := app.handleStats(stats); err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := "Всего пользователей в боте: 2\nПолучили купон: 1"
	if got := stats.texts(); len(got) != 1 || got[0] != want {
		t.Fatalf("stats = %q, want %q", got, want)
	}

	users := newMessage(adminID, "")
	if err := app.handleUsers(users); err != nil {
		t.Fatalf("users: %v", err)
	}
	got := users.texts()
	if len(got) != 1 {
		t.Fatalf("user list messages = %d, want 1", len(got))
	}
	if !strings.Contains(got[0], "Петров Иван Сергеевич") || !strings.Contains(got[0], "tg://user?id=12") {
		t.Fatalf("user list = %q", got[0])
	}
}

func TestAdminCallbacksAreGated(t *testing.T) {
	app := newTestApp(t)
	reg, err := app.Registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	h, ok := reg.GetCallback(cbAdminStats)
	if !ok {
		t.Fatal("admin_stats callback not registered")
	}

	stranger := newMessage(5, "")
	if err := h(stranger); err != nil {
		t.Fatalf("stranger: %v", err)
	}
	if len(stranger.sent) != 0 {
		t.Fatalf("non-admin must get nothing, got %v", stranger.sent)
	}

	admin := newMessage(adminID, "")
	if err := h(admin); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if len(admin.sent) != 1 {
		t.Fatalf("admin replies = %d, want 1", len(admin.sent))
	}
}

func TestTelegramRunOptionsRoutes(t *testing.T) {
	app := newTestApp(t)
	opts, err := app.TelegramRunOptions()
	if err != nil {
		t.Fatalf("run options: %v", err)
	}
	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{"/start", "/admin", tele.OnCallback, tele.OnText, tele.OnDocument} {
		if !endpoints[want] {
			t.Fatalf("missing route %v", want)
		}
	}
	if cmds := opts.Registry.ListCommands(true); len(cmds) == 0 {
		t.Fatal("no commands listed")
	}
	if opts.OnStart == nil || opts.OnStop == nil {
		t.Fatal("lifecycle hooks must be set")
	}
}
