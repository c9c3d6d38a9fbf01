package observability_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/pipette/internal/logging"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_SubscriberAndHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	sub := m.Subscriber()
	sub(domain.CommandRecord{Kind: domain.ActionAspirate, Params: domain.CommandParams{Volume: 10}})
	sub(domain.CommandRecord{Kind: domain.ActionAspirate, Params: domain.CommandParams{Volume: 15.5}})
	sub(domain.CommandRecord{Kind: domain.ActionPickUpTip})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records.WithLabelValues("aspirate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues("pick_up_tip")))
	assert.Equal(t, 25.5, testutil.ToFloat64(m.Volume.WithLabelValues("aspirate")))

	hooks := m.Hooks()
	hooks.OnActionEnd(context.Background(), &domain.ActionEvent{Kind: "dispense", Duration: 20 * time.Millisecond})
	hooks.OnActionEnd(context.Background(), &domain.ActionEvent{Kind: "pick_up_tip", Err: domain.ErrOutOfTips})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionErrors.WithLabelValues("pick_up_tip", "OutOfTipsError")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ActionDuration))

	m.ObserveRun(domain.RunSucceeded)
	m.ObserveRun(domain.RunSucceeded)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("succeeded")))

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	m.ObserveRun(domain.RunFailed)

	srv := httptest.NewServer(observability.Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pipette_runs_total{status="failed"} 1`)
}

func TestLogSubscriberAndHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(slog.LevelDebug, logging.FormatJSON, &buf)

	observability.LogSubscriber(logger)(domain.CommandRecord{ID: "r1", Kind: domain.ActionComment, Text: "hello"})
	hooks := observability.LogHooks(logger)
	hooks.OnActionStart(context.Background(), &domain.ActionEvent{Position: 1, Kind: "comment"})
	hooks.OnActionEnd(context.Background(), &domain.ActionEvent{Position: 1, Kind: "aspirate", Err: errors.New("stall")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"text":"hello"`)
	assert.Contains(t, lines[1], `"msg":"action start"`)
	assert.Contains(t, lines[2], `"level":"ERROR"`)
	assert.Contains(t, lines[2], `"err":"stall"`)
}

func TestCombineHooks(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnActionEnd: func(context.Context, *domain.ActionEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnActionStart: func(context.Context, *domain.ActionEvent) { calls = append(calls, "b-start") },
		OnActionEnd:   func(context.Context, *domain.ActionEvent) { calls = append(calls, "b") },
	}
	combined := observability.CombineHooks(a, domain.LifecycleHooks{}, b)
	combined.OnActionStart(context.Background(), &domain.ActionEvent{})
	combined.OnActionEnd(context.Background(), &domain.ActionEvent{})
	assert.Equal(t, []string{"b-start", "a", "b"}, calls)

	assert.Nil(t, observability.CombineHooks().OnActionStart)
}
