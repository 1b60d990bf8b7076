package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/adapters/file"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/pkg/adapters/memory"
	redisadapter "github.com/aretw0/strata/pkg/adapters/redis"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/persistence/middleware"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// LoadConfig reads the config file of a project directory.
// An empty path means <dir>/strata.yaml. A relative checkpoint dir is resolved against dir.
func LoadConfig(dir, path string) (config.Config, error) {
	if dir == "" {
		dir = "."
	}
	if path == "" {
		path = filepath.Join(dir, config.DefaultPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if !filepath.IsAbs(cfg.Checkpoints.Dir) {
		cfg.Checkpoints.Dir = filepath.Join(dir, cfg.Checkpoints.Dir)
	}
	return cfg, nil
}

// Stack is a Workspace wired from a Config, together with the resources it owns.
type Stack struct {
	Config      config.Config
	Logger      *slog.Logger
	Workspace   *strata.Workspace
	Checkpoints ports.CheckpointStore
	Sessions    *session.Manager
	Metrics     *prometheus.Registry

	closers []func() error
}

// NewStack opens the checkpoint store and builds the workspace.
// Extra options are applied after the ones derived from cfg.
func NewStack(cfg config.Config, logger *slog.Logger, opts ...strata.Option) (*Stack, error) {
	if logger == nil {
		logger = CreateLogger(cfg.LogLevel, false)
	}
	s := &Stack{
		Config:  cfg,
		Logger:  logger,
		Metrics: prometheus.NewRegistry(),
	}

	store, locker, err := s.openCheckpoints()
	if err != nil {
		return nil, err
	}
	s.Checkpoints = store

	sessionOpts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(locker))
	}
	s.Sessions = session.NewManager(store, sessionOpts...)

	slices, err := cfg.SliceSchema()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	wsOpts := []strata.Option{
		strata.WithSchema(slices),
		strata.WithName(cfg.Name),
		strata.WithInitialState(domain.Tree(cfg.InitialState)),
		strata.WithCapacity(cfg.Capacity),
		strata.WithCoalesceWindow(cfg.CoalesceWindow),
		strata.WithCheckpointStore(store),
		strata.WithMetrics(s.Metrics),
		strata.WithLogger(logger),
	}
	ws, err := strata.New(append(wsOpts, opts...)...)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("error initializing workspace: %w", err)
	}
	s.Workspace = ws
	return s, nil
}

// openCheckpoints builds the configured driver wrapped in the redaction and encryption layers.
func (s *Stack) openCheckpoints() (ports.CheckpointStore, ports.DistributedLocker, error) {
	cfg := s.Config

	var (
		base   ports.CheckpointStore
		locker ports.DistributedLocker
	)
	switch cfg.Checkpoints.Driver {
	case config.DriverMemory:
		base = memory.NewStore()
	case config.DriverRedis:
		r := cfg.Checkpoints.Redis
		rs := redisadapter.New(r.Addr, r.Password, r.DB,
			redisadapter.WithPrefix(r.Prefix),
			redisadapter.WithTTL(r.TTL),
		)
		s.closers = append(s.closers, rs.Close)
		if r.Lock {
			locker = redisadapter.NewLocker(rs.Client(), r.Prefix)
		}
		base = rs
	default:
		base = file.New(cfg.Checkpoints.Dir)
	}
	s.Logger.Debug("checkpoint store opened", "driver", cfg.Checkpoints.Driver, "lock", locker != nil)

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mws = append(mws, middleware.NewRedactMiddleware(cfg.Redact))
	}
	active, fallbacks, err := cfg.Keys()
	if err != nil {
		return nil, nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallbacks,
		}))
	}
	return middleware.Chain(base, mws...), locker, nil
}

// Close releases the checkpoint store connections.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}
