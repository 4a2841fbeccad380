// Package reindex launches the background source → target copy and watches it.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/logger"
)

// Errors returned by the copy coordinator.
var (
	ErrTaskFailed      = errors.New("reindex: task failed")
	ErrPollAttempts    = errors.New("reindex: poll attempt budget exhausted")
	ErrMaxWait         = errors.New("reindex: maximum wait exceeded")
	ErrPollUnavailable = errors.New("reindex: task status unavailable")
)

// Config bounds the copy. Zero values take the defaults.
type Config struct {
	PollInterval      time.Duration
	MaxPollAttempts   int
	MaxWait           time.Duration
	MaxPollFailures   int // consecutive failed polls tolerated
	Slices            string
	RequestsPerSecond float64 // <= 0 is unthrottled
	BatchSize         int
}

// DefaultConfig polls every 10s for up to 24h.
func DefaultConfig() Config {
	return Config{
		PollInterval:      10 * time.Second,
		MaxPollAttempts:   8640,
		MaxWait:           24 * time.Hour,
		MaxPollFailures:   5,
		Slices:            "auto",
		RequestsPerSecond: -1,
		BatchSize:         1000,
	}
}

// Progress is reported after every successful poll.
type Progress struct {
	TaskID     string
	Attempt    int
	Copied     int64
	Total      int64
	Elapsed    time.Duration
	DocsPerSec float64
	ETA        time.Duration
}

// Ratio returns copied/total, or 0 while the total is unknown.
func (p Progress) Ratio() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Copied) / float64(p.Total)
}

// Service coordinates the bulk copy.
type Service struct {
	cluster Cluster
	cfg     Config
	now     func() time.Time
}

// New creates a copy coordinator.
func New(c Cluster, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = def.MaxPollAttempts
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.MaxPollFailures <= 0 {
		cfg.MaxPollFailures = def.MaxPollFailures
	}
	if cfg.Slices == "" {
		cfg.Slices = def.Slices
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &Service{cluster: c, cfg: cfg, now: time.Now}
}

// Start launches a non-blocking copy of source into target. Fields in exclude
// are stripped from every copied document.
func (s *Service) Start(ctx context.Context, source, target string, exclude []string) (string, error) {
	taskID, err := s.cluster.StartReindex(ctx, cluster.ReindexRequest{
		Source:            source,
		Dest:              target,
		ExcludeFields:     exclude,
		Slices:            s.cfg.Slices,
		RequestsPerSecond: s.cfg.RequestsPerSecond,
		BatchSize:         s.cfg.BatchSize,
	})
	if err != nil {
		return "", fmt.Errorf("start reindex %s -> %s: %w", source, target, err)
	}
	logger.FromContext(ctx).Info("Copy started",
		zap.String("task_id", taskID),
		zap.Strings("excluded", exclude),
	)
	return taskID, nil
}

// Poll reads the task once. A completed task carrying an error or bulk
// failures is reported as ErrTaskFailed.
func (s *Service) Poll(ctx context.Context, taskID string) (cluster.TaskStatus, error) {
	st, err := s.cluster.GetTask(ctx, taskID)
	if err != nil {
		return st, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if st.Completed {
		if st.Error != "" {
			return st, fmt.Errorf("%w: %s", ErrTaskFailed, st.Error)
		}
		if len(st.Failures) > 0 {
			return st, fmt.Errorf("%w: %d bulk failures: %s", ErrTaskFailed, len(st.Failures), strings.Join(st.Failures, "; "))
		}
	}
	return st, nil
}

// Wait polls on the fixed interval until the task completes. It gives up after
// MaxPollAttempts polls, MaxWait elapsed, MaxPollFailures consecutive transient
// poll errors, or the first non-transient one.
func (s *Service) Wait(ctx context.Context, taskID string, onProgress func(Progress)) (cluster.TaskStatus, error) {
	log := logger.FromContext(ctx).With(zap.String("task_id", taskID))
	start := s.now()
	deadline := time.NewTimer(s.cfg.MaxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var last cluster.TaskStatus
	failures := 0
	for attempt := 1; attempt <= s.cfg.MaxPollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		st, err := s.Poll(ctx, taskID)
		switch {
		case errors.Is(err, ErrTaskFailed):
			return st, err
		case err != nil:
			if !cluster.IsTransient(err) {
				return last, err
			}
			failures++
			log.Warn("Copy poll failed", zap.Int("attempt", attempt), zap.Int("consecutive", failures), zap.Error(err))
			if failures >= s.cfg.MaxPollFailures {
				return last, fmt.Errorf("%w after %d consecutive failures: %w", ErrPollUnavailable, failures, err)
			}
		default:
			failures = 0
			last = st
			p := s.progress(taskID, attempt, st, start)
			log.Info("Copy progress",
				zap.Int64("copied", p.Copied),
				zap.Int64("total", p.Total),
				zap.String("percent", fmt.Sprintf("%.1f", p.Ratio()*100)),
				zap.Float64("docs_per_sec", p.DocsPerSec),
				zap.Duration("eta", p.ETA),
			)
			if onProgress != nil {
				onProgress(p)
			}
			if st.Completed {
				return st, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-deadline.C:
			return last, fmt.Errorf("%w: %s", ErrMaxWait, s.cfg.MaxWait)
		case <-ticker.C:
		}
	}
	return last, fmt.Errorf("%w: %d polls", ErrPollAttempts, s.cfg.MaxPollAttempts)
}

// Cancel stops the task server-side. A task the cluster no longer knows about
// has already finished, which counts as stopped.
func (s *Service) Cancel(ctx context.Context, taskID string) error {
	err := s.cluster.CancelTask(ctx, taskID)
	if errors.Is(err, cluster.ErrTaskNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cancel task %s: %w", taskID, err)
	}
	logger.FromContext(ctx).Info("Copy task canceled", zap.String("task_id", taskID))
	return nil
}

func (s *Service) progress(taskID string, attempt int, st cluster.TaskStatus, start time.Time) Progress {
	p := Progress{
		TaskID:  taskID,
		Attempt: attempt,
		Copied:  st.Copied(),
		Total:   st.Total,
		Elapsed: s.now().Sub(start),
	}
	if secs := p.Elapsed.Seconds(); secs > 0 && p.Copied > 0 {
		p.DocsPerSec = float64(p.Copied) / secs
		if remaining := p.Total - p.Copied; remaining > 0 {
			p.ETA = time.Duration(float64(remaining) / p.DocsPerSec * float64(time.Second))
		}
	}
	return p
}
