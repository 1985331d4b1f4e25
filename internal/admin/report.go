// Package admin builds the reports shown in the admin panel.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/couponbot/core/logger"
	"github.com/m3rciful/couponbot/core/telegram/format"
	"github.com/m3rciful/couponbot/internal/issuance"
)

// MaxMessageLen keeps each list message under Telegram's 4096 character cap.
const MaxMessageLen = 4000

// Source provides the data behind the reports.
type Source interface {
	Stats(ctx context.Context) (issuance.Stats, error)
	Users(ctx context.Context) ([]issuance.User, error)
}

// Texts are the report labels. Stats takes the total, Issued the coupon count.
type Texts struct {
	Welcome     string
	StatsButton string
	UsersButton string
	Stats       string
	Issued      string
	UsersHeader string
	NoUsers     string
	NoName      string
	Profile     string
}

// DefaultTexts returns the Russian labels.
func DefaultTexts() Texts {
	return Texts{
		Welcome:     "Добро пожаловать в админ-панель!",
		StatsButton: "Статистика",
		UsersButton: "Пользователи",
		Stats:       "Всего пользователей в боте: %d",
		Issued:      "Получили купон: %d",
		UsersHeader: "Список пользователей:\n\n",
		NoUsers:     "Пользователей пока нет.",
		NoName:      "без имени",
		Profile:     "Профиль",
	}
}

// Reporter renders statistics and the user list.
type Reporter struct {
	src   Source
	texts Texts
}

// NewReporter returns a Reporter over src. A zero Texts selects DefaultTexts.
func NewReporter(src Source, texts Texts) *Reporter {
	if texts.Stats == "" {
		texts = DefaultTexts()
	}
	return &Reporter{src: src, texts: texts}
}

// Texts returns the labels in use.
func (r *Reporter) Texts() Texts { return r.texts }

// StatsText reports the number of users and how many got a coupon.
func (r *Reporter) StatsText(ctx context.Context) (string, error) {
	st, err := r.src.Stats(ctx)
	if err != nil {
		return "", err
	}
	logger.Info(ctx, logger.CompAdmin, "admin.stats",
		slog.Int("total", st.Total),
		slog.Int("issued", st.Issued),
	)
	return fmt.Sprintf(r.texts.Stats, st.Total) + "\n" + fmt.Sprintf(r.texts.Issued, st.Issued), nil
}

// UserList returns the user list as Markdown (v1) messages, each shorter than
// MaxMessageLen. An empty table yields a single plain NoUsers message and
// markdown=false.
func (r *Reporter) UserList(ctx context.Context) (msgs []string, markdown bool, err error) {
	users, err := r.src.Users(ctx)
	if err != nil {
		return nil, false, err
	}
	logger.Info(ctx, logger.CompAdmin, "admin.users", slog.Int("count", len(users)))
	if len(users) == 0 {
		return []string{r.texts.NoUsers}, false, nil
	}

	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, r.userLine(u))
	}
	return chunk(r.texts.UsersHeader, lines, MaxMessageLen), true, nil
}

func (r *Reporter) userLine(u issuance.User) string {
	name := strings.TrimSpace(u.DisplayName)
	if name == "" {
		name = r.texts.NoName
	}
	name, _ = format.EscapeMarkdown(name, format.MarkdownV1)
	id := strconv.FormatInt(u.Identity, 10)
	return "- " + name + " (ID: " + id + ") - [" + r.texts.Profile + "](tg://user?id=" + id + ")\n"
}

// chunk packs lines into messages of at most limit runes; the header opens
// the first message only.
func chunk(header string, lines []string, limit int) []string {
	var (
		msgs []string
		b    strings.Builder
		size int
	)
	b.WriteString(header)
	size = utf8.RuneCountInString(header)
	for _, line := range lines {
		n := utf8.RuneCountInString(line)
		if size+n > limit && size > 0 {
			msgs = append(msgs, b.String())
			b.Reset()
			size = 0
		}
		b.WriteString(line)
		size += n
	}
	if size > 0 {
		msgs = append(msgs, b.String())
	}
	return msgs
}
