// Package pipeline runs the analysis commands end to end: ingest, compute,
// write outputs, persist scores, upload artifacts and export metrics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-flowgraph/pkg/artifacts"
	"github.com/dd0wney/cluso-flowgraph/pkg/config"
	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/metrics"
	"github.com/dd0wney/cluso-flowgraph/pkg/output"
	"github.com/dd0wney/cluso-flowgraph/pkg/store"
)

// Command names.
const (
	CommandCommunities = "communities"
	CommandPropagate   = "propagate"
	CommandEntities    = "entities"
)

// Env holds the collaborators shared by every run.
type Env struct {
	Config   *config.Config
	Logger   logging.Logger
	Metrics  *metrics.Registry
	Store    store.Store
	Uploader artifacts.Uploader
}

// Setup opens the configured store and uploader.
func Setup(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Env, error) {
	logger = logging.OrNop(logger)

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var up artifacts.Uploader = artifacts.Noop{}
	if cfg.Artifacts.Enabled {
		s3up, err := artifacts.NewS3Uploader(ctx, artifacts.S3Options{
			Bucket:          cfg.Artifacts.Bucket,
			Prefix:          cfg.Artifacts.Prefix,
			Region:          cfg.Artifacts.Region,
			Endpoint:        cfg.Artifacts.Endpoint,
			AccessKeyID:     cfg.Artifacts.AccessKeyID,
			SecretAccessKey: cfg.Artifacts.SecretAccessKey,
			Logger:          logger,
		})
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		up = s3up
	}

	return &Env{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics.NewRegistry(),
		Store:    st,
		Uploader: up,
	}, nil
}

// Close releases the store.
func (e *Env) Close() error {
	return e.Store.Close()
}

// Stat is one line of a run summary.
type Stat struct {
	Name  string
	Value string
}

// Report describes a finished run.
type Report struct {
	RunID    string
	Command  string
	Started  time.Time
	Duration time.Duration
	Files    []string
	Uploaded []string
	Stats    []Stat
}

func (r *Report) stat(name string, format string, args ...any) {
	r.Stats = append(r.Stats, Stat{Name: name, Value: fmt.Sprintf(format, args...)})
}

// run carries the state of one command execution.
type run struct {
	ctx    context.Context
	env    *Env
	logger logging.Logger
	report *Report
}

// execute wraps body with run bookkeeping: a fresh run id, the run record,
// artifact upload and metrics export. The run record and metrics are
// written even when body fails.
func execute(ctx context.Context, env *Env, command string, body func(r *run) error) (*Report, error) {
	id := uuid.NewString()
	report := &Report{RunID: id, Command: command, Started: time.Now()}
	r := &run{
		ctx:    ctx,
		env:    env,
		logger: logging.OrNop(env.Logger).With(logging.RunID(id), logging.String("command", command)),
		report: report,
	}
	r.logger.Info("run started")

	err := body(r)
	if err == nil && len(report.Files) > 0 {
		report.Uploaded, err = env.Uploader.Upload(ctx, id, report.Files)
	}
	report.Duration = time.Since(report.Started)

	status, detail := metrics.StatusSuccess, ""
	if err != nil {
		status, detail = metrics.StatusError, err.Error()
	}
	if serr := env.Store.SaveRun(context.WithoutCancel(ctx), store.Run{
		ID:         id,
		Command:    command,
		StartedAt:  report.Started,
		FinishedAt: report.Started.Add(report.Duration),
		Status:     status,
		Detail:     detail,
	}); serr != nil {
		err = errors.Join(err, serr)
	}

	env.Metrics.RecordRun(command, err)
	env.Metrics.UpdateSystemMetrics()
	if path := env.Config.Metrics.Textfile; path != "" {
		if merr := env.Metrics.WriteTextfile(path); merr != nil {
			err = errors.Join(err, merr)
		}
	}

	if err != nil {
		r.logger.Error("run failed", logging.Error(err), logging.Duration("duration", report.Duration))
		return report, err
	}
	r.logger.Info("run finished",
		logging.Duration("duration", report.Duration),
		logging.Count(len(report.Files)))
	return report, nil
}

// stage runs fn as a named, timed step. It refuses to start once the
// context is done.
func (r *run) stage(name string, fn func() error) error {
	if err := r.ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	timer := logging.StartTimer(r.logger, name, logging.Stage(name))
	if err := fn(); err != nil {
		timer.EndError(err)
		return fmt.Errorf("%s: %w", name, err)
	}
	r.env.Metrics.ObserveStage(name, timer.End())
	return nil
}

// write creates name in the output directory and records it in the report.
func (r *run) write(name string, fn func(io.Writer) error) error {
	path := filepath.Join(r.env.Config.Output.Dir, name)
	if err := output.WriteFile(path, fn); err != nil {
		return err
	}
	r.report.Files = append(r.report.Files, path)
	r.logger.Debug("wrote output", logging.Path(path))
	return nil
}
