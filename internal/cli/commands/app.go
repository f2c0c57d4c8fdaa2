package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/cli/config"
	"github.com/conduit-lang/modelkit/internal/cli/ui"
	"github.com/conduit-lang/modelkit/internal/logging"
	"github.com/conduit-lang/modelkit/internal/orm/conventions"
	"github.com/conduit-lang/modelkit/internal/orm/dispatch"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
	"github.com/conduit-lang/modelkit/internal/orm/modelcache"
	"github.com/conduit-lang/modelkit/internal/orm/modelfile"
)

// app holds state shared by the subcommands of one invocation
type app struct {
	configPath string
	noColor    bool

	cfg    *config.Config
	logger *zap.Logger
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		ui.ConfigError(err, a.noColor).Write(cmd.ErrOrStderr())
		return err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) teardown(*cobra.Command, []string) {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// conventionSet returns the configured conventions
func (a *app) conventionSet() *conventions.Set {
	return conventions.DefaultSet(a.logger.Named("conventions"), a.cfg.Conventions.Disabled...)
}

// built is a model constructed from a model file
type built struct {
	model      *metadata.Model
	dispatcher *dispatch.Dispatcher
	set        *conventions.Set
}

// buildModel applies a model file to a fresh model wired to set
func (a *app) buildModel(file *modelfile.File, set *conventions.Set) (*built, error) {
	model, d := set.NewModel(
		dispatch.WithLogger(a.logger.Named("dispatch")),
		dispatch.WithMaxDepth(a.cfg.Dispatch.MaxDepth),
	)
	if err := file.Apply(model, a.logger.Named("modelfile")); err != nil {
		return nil, err
	}

	stats := d.Stats()
	a.logger.Debug("model built",
		zap.Int("entity_types", len(model.EntityTypes())),
		zap.Int("delivered", stats.Delivered),
		zap.Int("dropped", stats.Dropped),
		zap.Int("max_depth", stats.MaxDepth))
	return &built{model: model, dispatcher: d, set: set}, nil
}

// openCache returns the configured snapshot cache, or nil when caching is off.
// The returned close function is always safe to call.
func (a *app) openCache(ctx context.Context) (modelcache.Cache, func(), error) {
	cacheConfig := modelcache.Config{DefaultTTL: a.cfg.Cache.TTL, Prefix: a.cfg.Cache.Prefix}
	switch a.cfg.Cache.Backend {
	case config.CacheMemory:
		return modelcache.NewMemoryCache(cacheConfig), func() {}, nil
	case config.CacheRedis:
		c, err := modelcache.NewRedisCache(ctx, modelcache.RedisConfig{
			Addr:     a.cfg.Cache.Redis.Addr,
			Password: a.cfg.Cache.Redis.Password,
			DB:       a.cfg.Cache.Redis.DB,
			Cache:    cacheConfig,
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("open snapshot cache: %w", err)
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
