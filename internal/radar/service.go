// Package radar exposes the token analytics pipeline as a single service:
// tracked tokens, on-demand passes, per-mint analytics and the scheduler.
package radar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-token-radar/internal/discovery"
	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/refresh"
	"solana-token-radar/internal/scheduler"
	"solana-token-radar/internal/solana"
	"solana-token-radar/internal/storage"
)

var (
	// ErrInvalidAddress is returned for malformed base58 addresses.
	ErrInvalidAddress = solana.ErrInvalidAddress
	// ErrAccountNotFound is returned when a mint account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNotMint is returned when an account is not owned by a token program.
	ErrNotMint = errors.New("account is not a token mint")
	// ErrUnavailable is returned when an optional component is not configured.
	ErrUnavailable = errors.New("component not configured")
)

// DiscoveryRunner runs one discovery pass.
type DiscoveryRunner interface {
	Run(ctx context.Context) (discovery.Result, error)
}

// RefreshRunner runs one refresh pass.
type RefreshRunner interface {
	Run(ctx context.Context) (refresh.Result, error)
}

// LPResolver resolves LP address sets for a mint.
type LPResolver interface {
	ResolveAll(ctx context.Context, mint string) []*domain.LPAddressSet
}

// RiskReporter fetches third-party risk reports.
type RiskReporter interface {
	Report(ctx context.Context, mint string) (*domain.RiskReport, error)
}

// AccountReader reads raw account data.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
}

// Options for creating a Service. Rugcheck, Accounts and History are optional.
type Options struct {
	Tokens    storage.TokenStore
	History   storage.SignalSnapshotStore
	Discovery DiscoveryRunner
	Refresh   RefreshRunner
	Holders   discovery.HolderAnalyzer
	Patterns  discovery.PatternDetector
	Honeypot  refresh.HoneypotChecker
	LP        LPResolver
	Rugcheck  RiskReporter
	Accounts  AccountReader

	DiscoveryInterval time.Duration
	RefreshInterval   time.Duration

	// Context handed to scheduled passes; cancel it on process shutdown.
	Context context.Context
	Logger  *zap.Logger
}

// Service is the exposed surface of the pipeline.
type Service struct {
	tokens    storage.TokenStore
	history   storage.SignalSnapshotStore
	discovery DiscoveryRunner
	refresh   RefreshRunner
	holders   discovery.HolderAnalyzer
	patterns  discovery.PatternDetector
	honeypot  refresh.HoneypotChecker
	lp        LPResolver
	rugcheck  RiskReporter
	accounts  AccountReader
	scheduler *scheduler.Controller
	logger    *zap.Logger

	// Scheduled and on-demand passes of the same kind never overlap.
	discoveryMu sync.Mutex
	refreshMu   sync.Mutex
}

// New creates a Service with a stopped scheduler.
func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Service{
		tokens:    opts.Tokens,
		history:   opts.History,
		discovery: opts.Discovery,
		refresh:   opts.Refresh,
		holders:   opts.Holders,
		patterns:  opts.Patterns,
		honeypot:  opts.Honeypot,
		lp:        opts.LP,
		rugcheck:  opts.Rugcheck,
		accounts:  opts.Accounts,
		logger:    opts.Logger.Named("radar"),
	}
	s.scheduler = scheduler.NewController(scheduler.Options{
		Discover: func(ctx context.Context) error {
			_, err := s.RunDiscoveryPass(ctx)
			return err
		},
		Refresh: func(ctx context.Context) error {
			_, err := s.RunRefreshPass(ctx)
			return err
		},
		DiscoveryInterval: opts.DiscoveryInterval,
		RefreshInterval:   opts.RefreshInterval,
		Context:           opts.Context,
		Logger:            opts.Logger,
	})
	return s
}

// TrackedTokens returns every tracked record, newest pool first.
func (s *Service) TrackedTokens(ctx context.Context) ([]*domain.TokenRecord, error) {
	records, err := s.tokens.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return records, nil
}

// RunDiscoveryPass fetches new pools and inserts the qualifying ones.
func (s *Service) RunDiscoveryPass(ctx context.Context) (discovery.Result, error) {
	s.discoveryMu.Lock()
	defer s.discoveryMu.Unlock()
	return s.discovery.Run(ctx)
}

// RunRefreshPass re-evaluates stale tracked tokens.
func (s *Service) RunRefreshPass(ctx context.Context) (refresh.Result, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refresh.Run(ctx)
}

// AnalyzeHolderDistribution computes holder concentration for mint.
func (s *Service) AnalyzeHolderDistribution(ctx context.Context, mint string) (domain.HolderDistribution, error) {
	if err := validate(mint); err != nil {
		return domain.HolderDistribution{}, err
	}
	return s.holders.Analyze(ctx, mint), nil
}

// DetectDistributionPatterns computes distribution signals for mint.
func (s *Service) DetectDistributionPatterns(ctx context.Context, mint string) (domain.DistributionSignals, error) {
	if err := validate(mint); err != nil {
		return domain.DistributionSignals{}, err
	}
	return s.patterns.Detect(ctx, mint), nil
}

// CheckHoneypot simulates a buy/sell round trip for mint.
func (s *Service) CheckHoneypot(ctx context.Context, mint string) (domain.HoneypotResult, error) {
	if err := validate(mint); err != nil {
		return domain.HoneypotResult{}, err
	}
	return s.honeypot.Check(ctx, mint), nil
}

// ResolveLPAddresses returns the LP address sets of mint, one per counter-asset.
func (s *Service) ResolveLPAddresses(ctx context.Context, mint string) ([]*domain.LPAddressSet, error) {
	if err := validate(mint); err != nil {
		return nil, err
	}
	return s.lp.ResolveAll(ctx, mint), nil
}

// RugcheckReport returns the filtered third-party risk report for mint.
func (s *Service) RugcheckReport(ctx context.Context, mint string) (*domain.RiskReport, error) {
	if err := validate(mint); err != nil {
		return nil, err
	}
	if s.rugcheck == nil {
		return nil, fmt.Errorf("rugcheck: %w", ErrUnavailable)
	}
	report, err := s.rugcheck.Report(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("rugcheck report: %w", err)
	}
	return report, nil
}

// MintInfo decodes the on-chain mint account of mint.
func (s *Service) MintInfo(ctx context.Context, mint string) (*domain.MintInfo, error) {
	if err := validate(mint); err != nil {
		return nil, err
	}
	if s.accounts == nil {
		return nil, fmt.Errorf("account reader: %w", ErrUnavailable)
	}

	acc, err := s.accounts.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get account info: %w", err)
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	if acc.Owner != solana.TokenProgramID && acc.Owner != solana.Token2022ProgramID {
		return nil, fmt.Errorf("%w: owner %s", ErrNotMint, acc.Owner)
	}

	m, err := solana.ParseMint(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("parse mint: %w", err)
	}
	exts, err := solana.RiskyExtensionsIn(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("scan extensions: %w", err)
	}
	if exts == nil {
		exts = []string{}
	}

	return &domain.MintInfo{
		Mint:            mint,
		Program:         acc.Owner,
		MintAuthority:   m.MintAuthority,
		FreezeAuthority: m.FreezeAuthority,
		Supply:          m.Supply,
		Decimals:        m.Decimals,
		IsInitialized:   m.IsInitialized,
		RiskyExtensions: exts,
	}, nil
}

// SignalHistory returns up to limit snapshots for pool, newest first.
func (s *Service) SignalHistory(ctx context.Context, pool string, limit int) ([]*domain.SignalSnapshot, error) {
	if err := validate(pool); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []*domain.SignalSnapshot{}, nil
	}
	snaps, err := s.history.GetByPool(ctx, pool, limit)
	if err != nil {
		return nil, fmt.Errorf("get signal history: %w", err)
	}
	return snaps, nil
}

// ClearAll removes every tracked record.
func (s *Service) ClearAll(ctx context.Context) error {
	if err := s.tokens.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	s.logger.Info("tracked tokens cleared")
	return nil
}

// Start starts the scheduler. Returns false if it was already running.
func (s *Service) Start() bool {
	return s.scheduler.Start()
}

// Stop stops the scheduler after any in-flight pass. Returns false if it was
// already stopped.
func (s *Service) Stop() bool {
	return s.scheduler.Stop()
}

// Running reports whether the scheduler is running.
func (s *Service) Running() bool {
	return s.scheduler.State() == scheduler.StateRunning
}

// Wait blocks until the scheduler loop has exited or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	return s.scheduler.Wait(ctx)
}

// StoreStatus describes the token store.
type StoreStatus struct {
	Status     string `json:"status"` // connected | error
	TokenCount int    `json:"token_count"`
	Error      string `json:"error,omitempty"`
}

// Status reports store connectivity and the tracked token count.
func (s *Service) Status(ctx context.Context) StoreStatus {
	keys, err := s.tokens.ListKeys(ctx)
	if err != nil {
		return StoreStatus{Status: "error", Error: err.Error()}
	}
	return StoreStatus{Status: "connected", TokenCount: len(keys)}
}

func validate(addr string) error {
	return solana.ValidateAddress(addr)
}
