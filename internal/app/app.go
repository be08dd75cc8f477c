// Package app wires the view database, persisted settings and message list
// controllers into the operations the CLI and TUI expose.
package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/planetary-social/planetary-cli/internal/crashreport"
	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/messagelist"
	"github.com/planetary-social/planetary-cli/internal/ssb"
)

const importBatchSize = 500

// Repository is the local view database.
type Repository interface {
	feed.Store
	FillMessages(ctx context.Context, msgs []ssb.Message) (int, error)
	AddPub(ctx context.Context, id ssb.Identity) error
	Message(ctx context.Context, key ssb.MessageKey) (ssb.Message, error)
}

type Settings interface {
	HomeStrategy(ctx context.Context) feed.Strategy
	DiscoverStrategy(ctx context.Context) feed.Strategy
	SetHomeStrategy(ctx context.Context, s feed.Strategy) error
	SetDiscoverStrategy(ctx context.Context, s feed.Strategy) error
}

// Metrics is implemented by metrics.Collector.
type Metrics interface {
	messagelist.Metrics
	RecordImported(count int)
}

type Option func(*Service)

// WithPageSource serves feed pages from store instead of the repository,
// e.g. a remote bot API.
func WithPageSource(store feed.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.pages = store
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithReporter(r crashreport.Reporter) Option {
	return func(s *Service) { s.reporter = r }
}

func WithPageSize(n int) Option {
	return func(s *Service) { s.pageSize = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	repo     Repository
	pages    feed.Store
	settings Settings
	log      *zap.Logger
	metrics  Metrics
	reporter crashreport.Reporter
	pageSize int
	now      func() time.Time
}

func NewService(repo Repository, settings Settings, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		pages:    repo,
		settings: settings,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("app")
	return s
}

// ImportResult counts the messages read from an import and those that were
// new to the view database.
type ImportResult struct {
	Read     int
	Inserted int
}

// ImportMessages reads messages from r, either a JSON array or one JSON
// message per line, and fills them into the view database in batches.
func (s *Service) ImportMessages(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult
	batch := make([]ssb.Message, 0, importBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.repo.FillMessages(ctx, batch)
		if err != nil {
			return fmt.Errorf("fill messages: %w", err)
		}
		res.Inserted += n
		if s.metrics != nil {
			s.metrics.RecordImported(n)
		}
		batch = batch[:0]
		return nil
	}

	err := decodeMessages(r, func(msg ssb.Message) error {
		res.Read++
		batch = append(batch, msg)
		if len(batch) == importBatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return res, err
	}
	s.log.Info("imported messages", zap.Int("read", res.Read), zap.Int("inserted", res.Inserted))
	return res, nil
}

func decodeMessages(r io.Reader, fn func(ssb.Message) error) error {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read messages: %w", err)
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("read messages: %w", err)
		}
	}
	for i := 0; dec.More(); i++ {
		var msg ssb.Message
		if err := dec.Decode(&msg); err != nil {
			return fmt.Errorf("decode message %d: %w", i, err)
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("read messages: %w", err)
		}
	}
	return nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// HomeList returns a controller for the persisted home strategy.
func (s *Service) HomeList(ctx context.Context) *messagelist.Controller {
	return s.newList(s.seeded(s.settings.HomeStrategy(ctx)))
}

// DiscoverList returns a controller for the persisted discover strategy.
func (s *Service) DiscoverList(ctx context.Context) *messagelist.Controller {
	return s.newList(s.seeded(s.settings.DiscoverStrategy(ctx)))
}

func (s *Service) ProfileList(id ssb.Identity) *messagelist.Controller {
	return s.newList(feed.ProfileStrategy(id))
}

// Page returns one page of a strategy without a controller.
func (s *Service) Page(ctx context.Context, strategy feed.Strategy, limit, offset int) ([]ssb.Message, error) {
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	msgs, err := s.pages.Feed(ctx, strategy, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("load %s page: %w", strategy.Kind, err)
	}
	return msgs, nil
}

func (s *Service) Message(ctx context.Context, key ssb.MessageKey) (ssb.Message, error) {
	msg, err := s.repo.Message(ctx, key)
	if err != nil {
		return ssb.Message{}, fmt.Errorf("load message: %w", err)
	}
	return msg, nil
}

func (s *Service) AddPub(ctx context.Context, id ssb.Identity) error {
	if err := s.repo.AddPub(ctx, id); err != nil {
		return fmt.Errorf("add pub: %w", err)
	}
	return nil
}

// Strategy returns the persisted home or discover strategy.
func (s *Service) Strategy(ctx context.Context, discover bool) feed.Strategy {
	if discover {
		return s.settings.DiscoverStrategy(ctx)
	}
	return s.settings.HomeStrategy(ctx)
}

func (s *Service) SetStrategy(ctx context.Context, discover bool, strategy feed.Strategy) error {
	if discover {
		return s.settings.SetDiscoverStrategy(ctx, strategy)
	}
	return s.settings.SetHomeStrategy(ctx, strategy)
}

// seeded gives an unseeded random strategy a seed for this session so its
// pages stay consistent while it lives.
func (s *Service) seeded(strategy feed.Strategy) feed.Strategy {
	if strategy.Kind == feed.KindRandom && strategy.Seed == 0 {
		strategy.Seed = s.now().UnixNano()
	}
	return strategy
}

func (s *Service) newList(strategy feed.Strategy) *messagelist.Controller {
	opts := []messagelist.Option{
		messagelist.WithLogger(s.log.Named("messagelist")),
		messagelist.WithPageSize(s.pageSize),
	}
	if s.metrics != nil {
		opts = append(opts, messagelist.WithMetrics(s.metrics))
	}
	if s.reporter != nil {
		opts = append(opts, messagelist.WithReporter(s.reporter))
	}
	s.log.Debug("starting message list", zap.Stringer("strategy", strategy))
	return messagelist.New(s.pages, strategy, opts...)
}
