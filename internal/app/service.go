package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dietscore/internal/affiliation"
	"dietscore/internal/archive"
	"dietscore/internal/cache"
	"dietscore/internal/config"
	"dietscore/internal/history"
	"dietscore/internal/scoring"
	"dietscore/internal/search"
	"dietscore/internal/snapshot"
	"dietscore/internal/store"
)

type dataStore interface {
	snapshot.Source
	Ping(context.Context) error
}

// RunResult summarizes one scoring pass.
type RunResult struct {
	Report     scoring.Report    `json:"-"`
	Digest     string            `json:"digest"`
	Bills      int               `json:"bills"`
	ComputedAt time.Time         `json:"computedAt"`
	Published  []string          `json:"published"`
	Failures   map[string]string `json:"failures"`
}

// MemberRef is a member as listed in group queries.
type MemberRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type runState struct {
	snap       *snapshot.Snapshot
	resolver   *affiliation.Resolver
	report     scoring.Report
	digest     string
	computedAt time.Time
}

type Service struct {
	cfg        config.Config
	store      dataStore
	search     *search.Service
	publishers []Publisher
	logger     *slog.Logger
	now        func() time.Time

	runMu sync.Mutex
	mu    sync.RWMutex
	state *runState
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher appends a report sink. Sinks run in the order they are added.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publishers = append(s.publishers, p)
		}
	}
}

// WithSearch replaces the default in-memory search service and publishes reports to it.
func WithSearch(svc *search.Service) Option {
	return func(s *Service) {
		if svc != nil {
			s.search = svc
		}
	}
}

func WithCache(c *cache.RedisStore) Option {
	return func(s *Service) {
		if c != nil {
			s.publishers = append(s.publishers, cachePublisher{store: c})
		}
	}
}

func WithHistory(h *history.Service) Option {
	return func(s *Service) {
		if h != nil {
			s.publishers = append(s.publishers, historyPublisher{history: h})
		}
	}
}

func WithArchive(a *archive.Archive) Option {
	return func(s *Service) {
		if a != nil {
			s.publishers = append(s.publishers, archivePublisher{archive: a})
		}
	}
}

func New(cfg config.Config, dataStore dataStore, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  dataStore,
		logger: slog.Default(),
		now:    time.Now,
	}
	if cfg.ReportPath != "" {
		s.publishers = append(s.publishers, FilePublisher{Path: cfg.ReportPath})
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.search == nil {
		s.search = search.NewService(nil, s.logger)
	}
	s.publishers = append(s.publishers, searchPublisher{search: s.search})
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Run loads a fresh snapshot, scores every bill and publishes the report. A read failure aborts
// the run and leaves the previous report in place. Publish failures are collected, not returned.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	st, data, err := s.compute(ctx)
	if err != nil {
		return RunResult{}, err
	}
	s.swap(st)
	report, digest, started := st.report, st.digest, st.computedAt

	result := RunResult{
		Report:     report,
		Digest:     digest,
		Bills:      len(report),
		ComputedAt: started,
		Published:  make([]string, 0, len(s.publishers)),
		Failures:   make(map[string]string),
	}
	for _, p := range s.publishers {
		if err := p.Publish(ctx, report, data, digest); err != nil {
			s.logger.Error("publish report", "sink", p.Name(), "digest", digest, "error", err)
			result.Failures[p.Name()] = err.Error()
			continue
		}
		result.Published = append(result.Published, p.Name())
	}

	s.logger.Info("scoring run complete",
		"bills", len(report),
		"digest", digest,
		"published", result.Published,
		"failures", len(result.Failures),
		"duration_ms", s.now().Sub(started).Milliseconds(),
	)
	return result, nil
}

// Resolve loads and scores like Run but publishes nothing. It backs one-off queries that must not
// touch any report sink.
func (s *Service) Resolve(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	st, _, err := s.compute(ctx)
	if err != nil {
		return err
	}
	s.swap(st)
	return nil
}

func (s *Service) compute(ctx context.Context) (*runState, []byte, error) {
	started := s.now()
	snap, err := snapshot.Load(ctx, s.store)
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	resolver := affiliation.NewResolver(snap, affiliation.WithLogger(s.logger))
	report := scoring.NewAggregator(snap, resolver, scoring.WithLogger(s.logger)).Score()
	data, err := scoring.Encode(report)
	if err != nil {
		return nil, nil, err
	}
	return &runState{
		snap:       snap,
		resolver:   resolver,
		report:     report,
		digest:     scoring.Digest(data),
		computedAt: started,
	}, data, nil
}

func (s *Service) swap(st *runState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Service) current() (*runState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, ErrNoReport
	}
	return s.state, nil
}

// Report returns the latest report and its digest.
func (s *Service) Report() (scoring.Report, string, time.Time, error) {
	st, err := s.current()
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return st.report, st.digest, st.computedAt, nil
}

func (s *Service) BillScore(billID int64) (scoring.BillScore, error) {
	st, err := s.current()
	if err != nil {
		return scoring.BillScore{}, err
	}
	bill, ok := st.report.Bill(billID)
	if !ok {
		return scoring.BillScore{}, notFound(entityBill, billID)
	}
	return bill, nil
}

// GroupForMember resolves the member's group on date. chamber nil searches both chambers.
// The bool result is false when the member had no group on that date.
func (s *Service) GroupForMember(memberID int64, date time.Time, chamber *store.Chamber) (store.Group, bool, error) {
	st, err := s.current()
	if err != nil {
		return store.Group{}, false, err
	}
	if _, ok := st.snap.MemberByID[memberID]; !ok {
		return store.Group{}, false, notFound(entityMember, memberID)
	}
	group, ok := st.resolver.GroupForMemberOn(memberID, date, chamber)
	return group, ok, nil
}

// MembersInGroup lists the group's members on date in id order.
func (s *Service) MembersInGroup(groupID int64, date time.Time) (store.Group, []MemberRef, error) {
	st, err := s.current()
	if err != nil {
		return store.Group{}, nil, err
	}
	group, ok := st.snap.GroupByID[groupID]
	if !ok {
		return store.Group{}, nil, notFound(entityGroup, groupID)
	}
	ids := st.resolver.MembersInGroupOn(groupID, date)
	items := make([]MemberRef, 0, len(ids))
	for _, id := range ids {
		items = append(items, MemberRef{ID: id, Name: st.snap.MemberByID[id].DisplayName()})
	}
	return group, items, nil
}

// Search runs a title search over the latest published report.
func (s *Service) Search(q search.Query) (search.Response, error) {
	if _, err := s.current(); err != nil {
		return search.Response{}, err
	}
	return s.search.Search(q), nil
}
