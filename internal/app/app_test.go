package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskseed/internal/config"
	"deskseed/internal/desk"
	"deskseed/internal/domain"
	"deskseed/internal/engine"
	"deskseed/internal/fakedesk"
	"deskseed/internal/journal"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", config.FormatJSON, &buf)
	require.NoError(t, err)
	assert.Equal(t, log.InfoLevel, logger.GetLevel())
	logger.Debug("hidden")
	logger.WithField("phase", "auth").Info("phase start")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"phase":"auth"`)

	_, err = NewLogger("chatty", config.FormatText, nil)
	require.Error(t, err)
}

func sandboxConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	store := fakedesk.NewStore()
	fakedesk.Seed(store, cfg.DomainActors(), fakedesk.SeedOptions{Subcategories: 10})
	logger, _ := NewLogger("error", config.FormatText, io.Discard)
	sb, err := fakedesk.Start("127.0.0.1:0", fakedesk.Config{
		Store: store,
		Auth:  fakedesk.AuthConfig{JWTSecret: "test"},
		Log:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sb.Close() })
	cfg.API.BaseURL = sb.URL
	cfg.Files.Path = t.TempDir()
	cfg.Log.Level = "error"
	cfg.Run.Seed = 99
	cfg.Run.Items = 20
	cfg.Run.Taxonomy = 5
	return cfg
}

func TestBuildAndRunTickets(t *testing.T) {
	cfg := sandboxConfig(t)
	ctx := context.Background()
	s, err := Build(ctx, cfg, engine.FlowTickets, Options{NoPause: true, LogOutput: io.Discard})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, uint64(99), s.Seed)
	assert.Equal(t, s.RunID, s.Client.CorrelationID)
	assert.Equal(t, engine.Pauses{}, s.Engine.Pauses)

	rep, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.RunID, rep.RunID)
	assert.Equal(t, 20, rep.Created)
	assert.Equal(t, 5, rep.Taxonomy)

	run, err := journal.GetRun(ctx, s.DB, s.RunID)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusOK, run.Status)
	assert.Equal(t, engine.FlowTickets, run.Flow)

	ops, err := s.Summary(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, ops)
	assert.Equal(t, "login", ops[0].Op)
	assert.Equal(t, len(cfg.Actors), ops[0].Calls)

	var adminAssigns int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM calls WHERE run_id=? AND op='assign' AND actor=?`,
		s.RunID, "helen.ward@deskseed.local").Scan(&adminAssigns))
	assert.Zero(t, adminAssigns, "analysts assign items to themselves by default")

	addr, err := ServeMetrics(ctx, "127.0.0.1:0", s.Metrics, s.Log)
	require.NoError(t, err)
	res, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `deskseed_remote_calls_total{op="createItem",outcome="ok"} 20`)
}

func TestRunMarksFatalRunFailed(t *testing.T) {
	cfg := sandboxConfig(t)
	cfg.Actors = append(cfg.Actors[:0:0], cfg.Actors...)
	for i := range cfg.Actors {
		if cfg.Actors[i].Role == domain.RoleAdministrator {
			cfg.Actors[i].Password = "wrong"
		}
	}
	ctx := context.Background()
	s, err := Build(ctx, cfg, engine.FlowSurveys, Options{NoPause: true, LogOutput: io.Discard})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Run(ctx)
	require.Error(t, err)
	assert.True(t, engine.IsFatal(err))
	run, err := journal.GetRun(ctx, s.DB, s.RunID)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusFailed, run.Status)
}

func TestServeMetricsRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	desk.NewMetrics(reg)
	logger, err := NewLogger("error", config.FormatText, io.Discard)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	addr, err := ServeMetrics(ctx, "127.0.0.1:0", reg, logger)
	require.NoError(t, err)

	res, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get("http://" + addr + "/debug")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	cancel()
	assert.Eventually(t, func() bool {
		res, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return true
		}
		res.Body.Close()
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Format = "xml"
	_, err := Build(context.Background(), cfg, engine.FlowKB, Options{})
	require.Error(t, err)
}
