// Package settings persists user preferences such as the selected feed
// strategies.
package settings

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/planetary-social/planetary-cli/internal/feed"
)

const (
	HomeStrategyKey     = "homeFeedStrategy"
	DiscoverStrategyKey = "discoveryFeedStrategy"
)

// KV is the key/value storage the settings live in.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type Store struct {
	kv  KV
	log *zap.Logger
}

func New(kv KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log.Named("settings")}
}

// HomeStrategy returns the saved home feed strategy. Missing, unreadable or
// corrupt values fall back to feed.DefaultHomeStrategy.
func (s *Store) HomeStrategy(ctx context.Context) feed.Strategy {
	return s.strategy(ctx, HomeStrategyKey, feed.DefaultHomeStrategy)
}

// DiscoverStrategy is HomeStrategy for the discover feed.
func (s *Store) DiscoverStrategy(ctx context.Context) feed.Strategy {
	return s.strategy(ctx, DiscoverStrategyKey, feed.DefaultDiscoverStrategy)
}

func (s *Store) SetHomeStrategy(ctx context.Context, strategy feed.Strategy) error {
	return s.setStrategy(ctx, HomeStrategyKey, strategy)
}

func (s *Store) SetDiscoverStrategy(ctx context.Context, strategy feed.Strategy) error {
	return s.setStrategy(ctx, DiscoverStrategyKey, strategy)
}

func (s *Store) strategy(ctx context.Context, key string, def feed.Strategy) feed.Strategy {
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn("failed to load feed strategy, using default",
			zap.String("key", key), zap.Stringer("default", def), zap.Error(err))
		return def
	}
	if !ok {
		return def
	}
	strategy, err := feed.DecodeOrDefault(data, def)
	if err != nil {
		s.log.Warn("stored feed strategy is invalid, using default",
			zap.String("key", key), zap.Stringer("default", def), zap.Error(err))
	}
	return strategy
}

func (s *Store) setStrategy(ctx context.Context, key string, strategy feed.Strategy) error {
	data, err := feed.Encode(strategy)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
