package dialogue

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/couponbot/core/telegram/state"
	"github.com/m3rciful/couponbot/internal/issuance"
	"github.com/m3rciful/couponbot/internal/render"
)

type fakeStore struct {
	mu    sync.Mutex
	users map[int64]issuance.User
	fail  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int64]issuance.User)}
}

func (s *fakeStore) FindByIdentity(_ context.Context, id int64) (issuance.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return issuance.User{}, s.fail
	}
	u, ok := s.users[id]
	if !ok {
		return issuance.User{}, issuance.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) Create(_ context.Context, id int64, name string) (issuance.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	u := issuance.User{Identity: id, DisplayName: name, FirstSeenAt: time.Now()}
	s.users[id] = u
	return u, nil
}

func (s *fakeStore) UpdateName(_ context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.DisplayName = name
	s.users[id] = u
	return nil
}

func (s *fakeStore) SetIssued(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.HasReceivedCoupon = true
	s.users[id] = u
	return nil
}

func (s *fakeStore) CountAll(context.Context) (int, error) { return len(s.users), nil }

func (s *fakeStore) CountIssued(context.Context) (int, error) { return 0, nil }

func (s *fakeStore) ListAll(context.Context) ([]issuance.User, error) { return nil, nil }

func (s *fakeStore) user(id int64) issuance.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

type fakeRenderer struct {
	mu      sync.Mutex
	dir     string
	calls   int
	failFor map[string]int
	delay   time.Duration
	last    string
}

func (r *fakeRenderer) Render(ctx context.Context, name string) (*render.Artifact, error) {
	r.mu.Lock()
	r.calls++
	r.last = name
	fail := r.failFor[name] > 0
	if fail {
		r.failFor[name]--
	}
	delay := r.delay
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, errors.New("template missing")
	}
	f, err := os.CreateTemp(r.dir, "coupon_*.png")
	if err != nil {
		return nil, err
	}
	f.Close()
	return &render.Artifact{Path: f.Name()}, nil
}

func (r *fakeRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type sent struct {
	text    string
	photo   string
	caption string
}

type fakeResponder struct {
	mu        sync.Mutex
	msgs      []sent
	photoErr  error
	photoSeen bool
}

func (r *fakeResponder) SendText(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{text: text})
	return nil
}

func (r *fakeResponder) SendPhoto(_ context.Context, path, caption string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := os.Stat(path); err == nil {
		r.photoSeen = true
	}
	if r.photoErr != nil {
		return r.photoErr
	}
	r.msgs = append(r.msgs, sent{photo: path, caption: caption})
	return nil
}

func (r *fakeResponder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		if m.text != "" {
			out = append(out, m.text)
		}
	}
	return out
}

func (r *fakeResponder) photos() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sent
	for _, m := range r.msgs {
		if m.photo != "" {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	store    *fakeStore
	renderer *fakeRenderer
	ctl      *Controller
	texts    Texts
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := newFakeStore()
	rnd := &fakeRenderer{dir: t.TempDir(), failFor: map[string]int{}}
	return &fixture{
		store:    store,
		renderer: rnd,
		ctl:      New(issuance.NewService(store), rnd, opts),
		texts:    DefaultTexts(),
	}
}

func (f *fixture) send(t *testing.T, ev Event) (*fakeResponder, bool) {
	t.Helper()
	out := &fakeResponder{}
	handled, err := f.ctl.Handle(context.Background(), ev, out)
	if err != nil {
		t.Fatalf("Handle(%v): %v", ev.Kind, err)
	}
	return out, handled
}

func start(id int64) Event {
	return Event{Kind: StartRequested, Identity: id, SenderName: "Иван"}
}

func text(id int64, s string) Event {
	return Event{Kind: TextReceived, Identity: id, Text: s}
}

func TestHappyPathIssuesOnce(t *testing.T) {
	f := newFixture(t, Options{})
	const u1 = 1

	out, _ := f.send(t, start(u1))
	if got := out.texts(); len(got) != 1 || !strings.HasPrefix(got[0], "Здравствуйте, Иван!") {
		t.Fatalf("greeting = %q", got)
	}
	if f.ctl.Session(u1) != AwaitingName {
		t.Fatalf("session = %q, want awaiting", f.ctl.Session(u1))
	}

	out, handled := f.send(t, text(u1, "Иванов Иван Иванович"))
	if !handled {
		t.Fatal("name submission not handled")
	}
	if f.renderer.count() != 1 || f.renderer.last != "Иванов Иван Иванович" {
		t.Fatalf("renderer calls = %d, last = %q", f.renderer.count(), f.renderer.last)
	}
	photos := out.photos()
	if len(photos) != 1 || photos[0].caption != f.texts.Caption {
		t.Fatalf("photos = %+v", photos)
	}
	if !out.photoSeen {
		t.Fatal("artifact was removed before the photo was sent")
	}
	if _, err := os.Stat(photos[0].photo); !os.IsNotExist(err) {
		t.Fatal("artifact not released after delivery")
	}
	got := out.texts()
	if len(got) != 2 || got[0] != f.texts.InProgress || got[1] != f.texts.Congratulation {
		t.Fatalf("texts = %q", got)
	}
	u := f.store.user(u1)
	if !u.HasReceivedCoupon || u.DisplayName != "Иванов Иван Иванович" {
		t.Fatalf("user = %+v", u)
	}
	if f.ctl.InProgress(u1) {
		t.Fatal("session not cleared")
	}

	// Returning user is told the coupon was already claimed.
	out, _ = f.send(t, start(u1))
	if got := out.texts(); len(got) != 1 || got[0] != f.texts.AlreadyClaimed {
		t.Fatalf("second start = %q", got)
	}
	if f.renderer.count() != 1 {
		t.Fatal("renderer invoked again after issuance")
	}
	if f.ctl.InProgress(u1) {
		t.Fatal("issued user must stay idle")
	}
}

func TestRejectionKeepsSession(t *testing.T) {
	f := newFixture(t, Options{})
	const u2 = 2
	f.send(t, start(u2))

	out, handled := f.send(t, text(u2, "Петров Петр"))
	if !handled {
		t.Fatal("rejection not handled")
	}
	want := "Пожалуйста, введите полное ФИО, состоящее из трех слов (Фамилия Имя Отчество)." + f.texts.RetrySuffix
	if got := out.texts(); len(got) != 1 || got[0] != want {
		t.Fatalf("reply = %q", got)
	}
	if f.ctl.Session(u2) != AwaitingName {
		t.Fatal("session must remain awaiting after a rejection")
	}
	if f.renderer.count() != 0 {
		t.Fatal("renderer invoked for a rejected name")
	}

	out, _ = f.send(t, text(u2, "Ttt Петр Петрович"))
	if got := out.texts(); len(got) != 1 || !strings.Contains(got[0], "'Ttt'") {
		t.Fatalf("vowel reply = %q", got)
	}
}

func TestRenderFailureThenRetry(t *testing.T) {
	f := newFixture(t, Options{})
	const id = 3
	name := "Смирнова Анна Юрьевна"
	f.renderer.failFor[name] = 1
	f.send(t, start(id))

	out, _ := f.send(t, text(id, name))
	got := out.texts()
	if len(got) != 2 || got[1] != f.texts.RenderFailed {
		t.Fatalf("texts = %q", got)
	}
	if f.store.user(id).HasReceivedCoupon {
		t.Fatal("issuance recorded after render failure")
	}
	if f.ctl.Session(id) != AwaitingName {
		t.Fatal("session must remain awaiting after render failure")
	}

	out, _ = f.send(t, text(id, name))
	if len(out.photos()) != 1 || !f.store.user(id).HasReceivedCoupon {
		t.Fatal("retry after render failure did not issue the coupon")
	}
}

func TestRenderTimeout(t *testing.T) {
	f := newFixture(t, Options{RenderTimeout: 20 * time.Millisecond})
	f.renderer.delay = 200 * time.Millisecond
	const id = 4
	f.send(t, start(id))

	out, _ := f.send(t, text(id, "Иванов Иван Иванович"))
	if got := out.texts(); got[len(got)-1] != f.texts.RenderFailed {
		t.Fatalf("texts = %q", got)
	}
	if f.store.user(id).HasReceivedCoupon {
		t.Fatal("issued despite timeout")
	}
}

func TestPhotoFailureIsNotIssued(t *testing.T) {
	f := newFixture(t, Options{})
	const id = 5
	f.send(t, start(id))

	out := &fakeResponder{photoErr: errors.New("telegram: bad request")}
	if _, err := f.ctl.Handle(context.Background(), text(id, "Иванов Иван Иванович"), out); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := out.texts(); got[len(got)-1] != f.texts.RenderFailed {
		t.Fatalf("texts = %q", got)
	}
	if f.store.user(id).HasReceivedCoupon || f.ctl.Session(id) != AwaitingName {
		t.Fatal("failed delivery must leave the user awaiting and unissued")
	}
}

func TestTextWhileIdleIsIgnored(t *testing.T) {
	f := newFixture(t, Options{})
	out, handled := f.send(t, text(6, "Иванов Иван Иванович"))
	if handled || len(out.msgs) != 0 {
		t.Fatalf("handled=%v msgs=%v", handled, out.msgs)
	}
}

func TestSubmissionAfterIssuanceIsRefused(t *testing.T) {
	f := newFixture(t, Options{})
	const id = 12
	f.send(t, start(id))
	if err := f.store.SetIssued(context.Background(), id); err != nil {
		t.Fatalf("SetIssued: %v", err)
	}

	out, handled := f.send(t, text(id, "Иванов Иван Иванович"))
	if !handled {
		t.Fatal("submission not handled")
	}
	if got := out.texts(); len(got) != 1 || got[0] != f.texts.AlreadyClaimed {
		t.Fatalf("reply = %q, want only the already-claimed notice", got)
	}
	if len(out.photos()) != 0 {
		t.Fatal("photo sent to a user who already has a coupon")
	}
	if f.renderer.count() != 0 {
		t.Fatalf("renderer calls = %d, want 0", f.renderer.count())
	}
	if st := f.ctl.Session(id); st != state.StateIdle {
		t.Fatalf("session = %q, want idle", st)
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.fail = errors.New("db down")
	_, err := f.ctl.Handle(context.Background(), start(7), &fakeResponder{})
	if !errors.Is(err, issuance.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if f.ctl.InProgress(7) {
		t.Fatal("session changed on store failure")
	}
}

func TestConcurrentSubmissionsRenderOnce(t *testing.T) {
	f := newFixture(t, Options{})
	f.renderer.delay = 30 * time.Millisecond
	const id = 8
	f.send(t, start(id))

	outs := []*fakeResponder{{}, {}}
	var wg sync.WaitGroup
	for _, out := range outs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ctl.Handle(context.Background(), text(id, "Иванов Иван Иванович"), out); err != nil {
				t.Errorf("Handle: %v", err)
			}
		}()
	}
	wg.Wait()

	if f.renderer.count() != 1 {
		t.Fatalf("renderer calls = %d, want 1", f.renderer.count())
	}
	photos, claimed := 0, 0
	for _, out := range outs {
		photos += len(out.photos())
		for _, m := range out.texts() {
			if m == f.texts.AlreadyClaimed {
				claimed++
			}
		}
	}
	// The loser either finds the coupon issued or arrives after the session closed.
	if photos != 1 || claimed > 1 {
		t.Fatalf("photos=%d already-claimed=%d", photos, claimed)
	}
	if f.ctl.locks.len() != 0 {
		t.Fatal("per-user locks leaked")
	}
}

func TestSessionsCanBeShared(t *testing.T) {
	sessions := state.NewMemoryManager()
	f := newFixture(t, Options{Sessions: sessions})
	f.send(t, start(9))
	if sessions.GetState(9) != AwaitingName {
		t.Fatal("controller did not use the provided session manager")
	}
}

func TestUnknownKind(t *testing.T) {
	f := newFixture(t, Options{})
	if _, err := f.ctl.Handle(context.Background(), Event{Identity: 1}, &fakeResponder{}); err == nil {
		t.Fatal("expected error for zero kind")
	}
}
