package metrics

import (
	"errors"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teslashibe/go-tuber/pkg/avatar"
)

func TestObserveFrame(t *testing.T) {
	m := New()

	f := avatar.Frame{Loudness: -15, Tier: avatar.TierFullSpeak, Override: true}
	m.ObserveFrame(f, avatar.Events{TierChanged: true, Onset: true, Pop: true, Blinked: true}, time.Millisecond)
	m.ObserveFrame(f, avatar.Events{Switched: true}, time.Millisecond)

	if got := testutil.ToFloat64(m.Frames); got != 2 {
		t.Errorf("frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TierCommits.WithLabelValues("full")); got != 1 {
		t.Errorf("tier commits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Pops); got != 1 {
		t.Errorf("pops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Switches); got != 1 {
		t.Errorf("switches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Loudness); got != -15 {
		t.Errorf("loudness = %v, want -15", got)
	}
	if got := testutil.ToFloat64(m.Override); got != 1 {
		t.Errorf("override = %v, want 1", got)
	}
}

func TestObserveFrame_Silence(t *testing.T) {
	m := New()
	m.ObserveFrame(avatar.Frame{Loudness: float32(math.Inf(-1))}, avatar.Events{}, 0)

	if got := testutil.ToFloat64(m.Loudness); got != -120 {
		t.Errorf("loudness = %v, want floor -120", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveReload(nil)
	m.ObserveReload(errors.New("bad yaml"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`tuber_config_reloads_total{result="ok"} 1`,
		`tuber_config_reloads_total{result="error"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
