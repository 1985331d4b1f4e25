package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.NameRejected("word-count")
	r.NameRejected("word-count")
	r.NameRejected("charset")
	r.RenderFinished(120*time.Millisecond, nil)
	r.RenderFinished(2*time.Second, errors.New("timeout"))
	r.CouponIssued()
	r.SendResult("send.text", nil)
	r.HandlerDone("start", "ok", 5*time.Millisecond)

	if got := testutil.ToFloat64(r.rejections.WithLabelValues("word-count")); got != 2 {
		t.Fatalf("word-count rejections = %v", got)
	}
	if got := testutil.ToFloat64(r.renders.WithLabelValues("fail")); got != 1 {
		t.Fatalf("failed renders = %v", got)
	}
	if got := testutil.ToFloat64(r.issued); got != 1 {
		t.Fatalf("issued = %v", got)
	}
	if got := testutil.ToFloat64(r.handlers.WithLabelValues("start", "ok")); got != 1 {
		t.Fatalf("handler count = %v", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.NameRejected("length")
	r.RenderFinished(time.Second, nil)
	r.CouponIssued()
	r.SendResult("send.text", errors.New("x"))
	r.HandlerDone("fsm", "fail", time.Second)
	r.TrackSessions(func() int { return 1 })
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.TrackSessions(func() int { return 3 })
	r.CouponIssued()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"couponbot_coupons_issued_total 1",
		"couponbot_dialogue_sessions_active 3",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
