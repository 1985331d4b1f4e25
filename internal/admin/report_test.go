package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/m3rciful/couponbot/internal/issuance"
)

type fakeSource struct {
	stats issuance.Stats
	users []issuance.User
	err   error
}

func (f fakeSource) Stats(context.Context) (issuance.Stats, error) { return f.stats, f.err }

func (f fakeSource) Users(context.Context) ([]issuance.User, error) { return f.users, f.err }

func TestStatsText(t *testing.T) {
	r := NewReporter(fakeSource{stats: issuance.Stats{Total: 12, Issued: 5}}, Texts{})
	got, err := r.StatsText(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "Всего пользователей в боте: 12") || !strings.Contains(got, "Получили купон: 5") {
		t.Fatalf("stats = %q", got)
	}
}

func TestUserListEmpty(t *testing.T) {
	msgs, md, err := NewReporter(fakeSource{}, Texts{}).UserList(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if md || len(msgs) != 1 || msgs[0] != "Пользователей пока нет." {
		t.Fatalf("msgs = %q md = %v", msgs, md)
	}
}

func TestUserListFormatsAndEscapes(t *testing.T) {
	src := fakeSource{users: []issuance.User{
		{Identity: 101, DisplayName: "Иванов Иван Иванович"},
		{Identity: 102, DisplayName: "snake_case *bold*"},
		{Identity: 103},
	}}
	msgs, md, err := NewReporter(src, Texts{}).UserList(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !md || len(msgs) != 1 {
		t.Fatalf("msgs = %q md = %v", msgs, md)
	}
	want := "Список пользователей:\n\n" +
		"- Иванов Иван Иванович (ID: 101) - [Профиль](tg://user?id=101)\n" +
		"- snake\\_case \\*bold\\* (ID: 102) - [Профиль](tg://user?id=102)\n" +
		"- без имени (ID: 103) - [Профиль](tg://user?id=103)\n"
	if msgs[0] != want {
		t.Fatalf("list =\n%s\nwant\n%s", msgs[0], want)
	}
}

func TestUserListSplitsLongLists(t *testing.T) {
	users := make([]issuance.User, 300)
	for i := range users {
		users[i] = issuance.User{Identity: int64(1_000_000 + i), DisplayName: "Константинопольский Константин Константинович"}
	}
	msgs, _, err := NewReporter(fakeSource{users: users}, Texts{}).UserList(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) < 2 {
		t.Fatalf("expected several messages, got %d", len(msgs))
	}
	total := 0
	for _, m := range msgs {
		if utf8.RuneCountInString(m) > MaxMessageLen {
			t.Fatalf("message too long: %d", utf8.RuneCountInString(m))
		}
		total += strings.Count(m, "tg://user?id=")
	}
	if total != len(users) {
		t.Fatalf("users listed = %d, want %d", total, len(users))
	}
	if !strings.HasPrefix(msgs[0], "Список пользователей:") || strings.HasPrefix(msgs[1], "Список") {
		t.Fatal("header must open the first message only")
	}
}

func TestReportErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	r := NewReporter(fakeSource{err: boom}, Texts{})
	if _, err := r.StatsText(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("StatsText err = %v", err)
	}
	if _, _, err := r.UserList(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("UserList err = %v", err)
	}
}
