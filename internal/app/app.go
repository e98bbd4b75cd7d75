package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"deskseed/internal/attach"
	"deskseed/internal/config"
	"deskseed/internal/content"
	"deskseed/internal/desk"
	"deskseed/internal/engine"
	"deskseed/internal/journal"
	"deskseed/internal/registry"
)

// Options adjust how a Session is built.
type Options struct {
	// NoPause disables every pause between remote calls.
	NoPause bool
	// LogOutput receives log lines; nil keeps the logger's default (stderr).
	LogOutput io.Writer
}

// Session is one wired run: client, registry, journal and engine sharing a
// run id and random seed.
type Session struct {
	RunID    string
	Seed     uint64
	Flow     string
	Config   *config.Config
	Log      *log.Logger
	Client   *desk.Client
	Registry *registry.Registry
	Metrics  *prometheus.Registry
	DB       *sql.DB
	Journal  journal.Writer
	Engine   engine.Engine
}

// NewLogger returns a logrus logger configured from level and format.
func NewLogger(level, format string, out io.Writer) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := log.New()
	logger.SetLevel(lvl)
	if out != nil {
		logger.SetOutput(out)
	}
	switch format {
	case config.FormatJSON:
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// Build wires a Session for flow from cfg and opens its journal run.
func Build(ctx context.Context, cfg *config.Config, flow string, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := NewLogger(cfg.Log.Level, cfg.Log.Format, opts.LogOutput)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(cfg.DomainActors())
	if err != nil {
		return nil, fmt.Errorf("actor roster: %w", err)
	}

	runID := uuid.NewString()
	r, seed := engine.NewRand(cfg.Run.Seed)
	runLog := logger.WithFields(log.Fields{"run": runID})

	metrics := prometheus.NewRegistry()
	client := desk.New(cfg.API.BaseURL)
	client.Timeout = cfg.API.Timeout
	client.CorrelationID = runID
	client.Metrics = desk.NewMetrics(metrics)
	client.Log = runLog

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	w, err := journal.Writer{DB: db}.BeginRun(ctx, journal.Run{ID: runID, Flow: flow, Seed: seed, BaseURL: cfg.API.BaseURL})
	if err != nil {
		db.Close()
		return nil, err
	}

	eng := engine.New(client, reg, content.Default(), attach.NewOS(cfg.Files.Path, r), r)
	eng.Log = runLog
	eng.Journal = w
	eng.Pauses = pauses(cfg)
	if opts.NoPause {
		eng.Pauses = engine.Pauses{}
	}
	eng.Report.RunID = runID
	eng.Report.Seed = seed

	runLog.WithFields(log.Fields{"flow": flow, "seed": seed, "base_url": cfg.API.BaseURL, "actors": reg.Len()}).Debug("session ready")
	return &Session{
		RunID:    runID,
		Seed:     seed,
		Flow:     flow,
		Config:   cfg,
		Log:      logger,
		Client:   client,
		Registry: reg,
		Metrics:  metrics,
		DB:       db,
		Journal:  w,
		Engine:   eng,
	}, nil
}

func pauses(cfg *config.Config) engine.Pauses {
	p := cfg.Pauses
	return engine.Pauses{
		Login:      p.Login,
		Create:     p.Create,
		Comment:    p.Comment,
		ArticleMin: p.ArticleMin,
		ArticleMax: p.ArticleMax,
	}
}

// Run executes the session's flow and stamps the journal run with its status.
func (s *Session) Run(ctx context.Context) (*engine.Report, error) {
	var (
		rep *engine.Report
		err error
	)
	switch s.Flow {
	case engine.FlowTickets:
		rep, err = s.Engine.RunTickets(ctx, engine.RunOptions{
			Items:        s.Config.Run.Items,
			Taxonomy:     s.Config.Run.Taxonomy,
			AdminAssigns: s.Config.Run.AdminAssigns,
		})
	case engine.FlowKB:
		rep, err = s.Engine.RunKnowledgeBase(ctx)
	case engine.FlowSurveys:
		rep, err = s.Engine.RunSurveys(ctx)
	default:
		err = fmt.Errorf("unknown flow %q", s.Flow)
	}
	status := journal.StatusOK
	if err != nil {
		status = journal.StatusFailed
		l := s.Log.WithFields(log.Fields{"run": s.RunID, "flow": s.Flow})
		if engine.IsFatal(err) {
			l.WithError(err).Error("run ended by unmet precondition")
		} else {
			l.WithError(err).Error("run failed")
		}
	}
	if ferr := s.Journal.FinishRun(context.WithoutCancel(ctx), status); ferr != nil {
		s.Log.WithError(ferr).Warn("journal finish failed")
	}
	return rep, err
}

// Summary returns the per-operation call statistics of the session's run.
func (s *Session) Summary(ctx context.Context) ([]journal.OpSummary, error) {
	return journal.Summary(ctx, s.DB, s.RunID)
}

func (s *Session) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
