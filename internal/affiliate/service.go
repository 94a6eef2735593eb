// Package affiliate serves the BG affiliate dashboard: downline statistics
// through the aggregation engine, the tree views, and commission changes.
package affiliate

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bgref/internal/domain"
	"bgref/internal/downline"
	"bgref/pkg/cache"
	"bgref/pkg/errors"
	"bgref/pkg/logger"
)

// EventCommissionUpdated is published to the wallet whose percent changed.
const EventCommissionUpdated = "commission_updated"

// Source supplies affiliate records. The postgres repository, the upstream
// client and the canned fallback dataset all implement it.
type Source interface {
	DownlineRecords(ctx context.Context, walletID int64) ([]domain.MemberRecord, error)
	CommissionHistory(ctx context.Context, walletID int64) ([]domain.CommissionEntry, error)
	Status(ctx context.Context, walletID int64) (*domain.AffiliateStatus, error)
	Stats(ctx context.Context, walletID int64) (*domain.AffiliateStats, error)
	Tree(ctx context.Context, walletID int64) (*domain.AffiliateTree, error)
	UpdateCommissionPercent(ctx context.Context, fromWalletID, toWalletID int64, percent decimal.Decimal) error
}

// SnapshotCache keeps the last good downline fetch per wallet.
type SnapshotCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// Notifier pushes live events to a wallet's open sessions.
type Notifier interface {
	Publish(walletID int64, eventType string, payload interface{})
}

// Options carries the policy switches read from config.
type Options struct {
	CommissionNeverIncrease bool
	EnableFallbackMode      bool
	SnapshotTTL             time.Duration
}

type Service struct {
	source   Source
	fallback Source
	cache    SnapshotCache
	notifier Notifier
	logger   logger.Logger
	opts     Options
}

// NewService wires the service. fallback, snapshots and notifier may be nil.
func NewService(source, fallback Source, snapshots SnapshotCache, notifier Notifier, log logger.Logger, opts Options) *Service {
	return &Service{
		source:   source,
		fallback: fallback,
		cache:    snapshots,
		notifier: notifier,
		logger:   log,
		opts:     opts,
	}
}

func snapshotKey(walletID int64) string {
	return fmt.Sprintf("downline:snapshot:%d", walletID)
}

// UpdateCommissionRequest asks to set a direct downline member's percent.
type UpdateCommissionRequest struct {
	ToWalletID int64           `json:"toWalletId" validate:"required,gt=0"`
	NewPercent decimal.Decimal `json:"newPercent" validate:"commission_percent"`
}

// CommissionUpdate reports an applied change.
type CommissionUpdate struct {
	FromWalletID    int64           `json:"fromWalletId"`
	ToWalletID      int64           `json:"toWalletId"`
	PreviousPercent decimal.Decimal `json:"previousPercent"`
	NewPercent      decimal.Decimal `json:"newPercent"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// shouldFallback reports whether err is a source failure rather than an
// answer. Domain refusals and caller cancellation pass through untouched.
func shouldFallback(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, errors.ErrNotBgAffiliate),
		errors.Is(err, errors.ErrWalletNotFound),
		errors.Is(err, errors.ErrNodeNotFound):
		return false
	}
	return true
}

// DownlineStats fetches the wallet's downline and runs the aggregation engine
// over it. When the source fails the last snapshot is used, then the canned
// dataset if fallback mode is on.
func (s *Service) DownlineStats(ctx context.Context, walletID int64, spec domain.FilterSpec) (*domain.DownlineStats, error) {
	records, src, err := s.downlineRecords(ctx, walletID)
	if err != nil {
		return nil, err
	}

	report := downline.Aggregate(records, spec)

	fields := downline.Describe(spec)
	fields["wallet_id"] = walletID
	fields["data_source"] = src
	fields["total_members"] = report.TotalMembers
	s.logger.Debug("Downline stats aggregated", fields)

	return &domain.DownlineStats{
		IsBgAffiliate:   true,
		DataSource:      src,
		Degraded:        src != domain.DataSourceLive,
		Filter:          spec,
		AggregateReport: report,
	}, nil
}

func (s *Service) downlineRecords(ctx context.Context, walletID int64) ([]domain.MemberRecord, domain.DataSource, error) {
	records, err := s.source.DownlineRecords(ctx, walletID)
	if err == nil {
		if s.cache != nil {
			if cerr := s.cache.Set(ctx, snapshotKey(walletID), records, s.opts.SnapshotTTL); cerr != nil {
				s.logger.Warn("Failed to store downline snapshot", map[string]interface{}{
					"wallet_id": walletID,
					"error":     cerr.Error(),
				})
			}
		}
		return records, domain.DataSourceLive, nil
	}
	if !shouldFallback(ctx, err) {
		return nil, "", err
	}

	s.logger.Warn("Downline source failed", map[string]interface{}{
		"wallet_id": walletID,
		"error":     err.Error(),
	})

	if s.cache != nil {
		var snapshot []domain.MemberRecord
		cerr := s.cache.Get(ctx, snapshotKey(walletID), &snapshot)
		if cerr == nil {
			return snapshot, domain.DataSourceCache, nil
		}
		if !stderrors.Is(cerr, cache.ErrMiss) {
			s.logger.Warn("Failed to read downline snapshot", map[string]interface{}{
				"wallet_id": walletID,
				"error":     cerr.Error(),
			})
		}
	}

	if s.opts.EnableFallbackMode && s.fallback != nil {
		records, ferr := s.fallback.DownlineRecords(ctx, walletID)
		if ferr == nil {
			return records, domain.DataSourceFallback, nil
		}
	}

	return nil, "", errors.Wrap(errors.ErrSourceUnavailable, err.Error())
}

// withFallback runs read against the live source and, on a source failure,
// against the canned dataset when fallback mode is on.
func withFallback[T any](ctx context.Context, s *Service, op string, walletID int64, read func(Source) (T, error)) (T, error) {
	v, err := read(s.source)
	if err == nil {
		return v, nil
	}
	var zero T
	if !shouldFallback(ctx, err) {
		return zero, err
	}
	if s.opts.EnableFallbackMode && s.fallback != nil {
		s.logger.Warn("Serving fallback data", map[string]interface{}{
			"operation": op,
			"wallet_id": walletID,
			"error":     err.Error(),
		})
		if fv, ferr := read(s.fallback); ferr == nil {
			return fv, nil
		}
	}
	return zero, errors.Wrap(errors.ErrSourceUnavailable, err.Error())
}

func (s *Service) CommissionHistory(ctx context.Context, walletID int64) ([]domain.CommissionEntry, error) {
	return withFallback(ctx, s, "commission_history", walletID, func(src Source) ([]domain.CommissionEntry, error) {
		return src.CommissionHistory(ctx, walletID)
	})
}

func (s *Service) Status(ctx context.Context, walletID int64) (*domain.AffiliateStatus, error) {
	return withFallback(ctx, s, "status", walletID, func(src Source) (*domain.AffiliateStatus, error) {
		return src.Status(ctx, walletID)
	})
}

func (s *Service) Stats(ctx context.Context, walletID int64) (*domain.AffiliateStats, error) {
	return withFallback(ctx, s, "stats", walletID, func(src Source) (*domain.AffiliateStats, error) {
		return src.Stats(ctx, walletID)
	})
}

func (s *Service) Tree(ctx context.Context, walletID int64) (*domain.AffiliateTree, error) {
	return withFallback(ctx, s, "tree", walletID, func(src Source) (*domain.AffiliateTree, error) {
		return src.Tree(ctx, walletID)
	})
}

// Overview loads status, stats and tree concurrently.
func (s *Service) Overview(ctx context.Context, walletID int64) (*domain.Overview, error) {
	var out domain.Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		status, err := s.Status(gctx, walletID)
		out.Status = status
		return err
	})
	g.Go(func() error {
		stats, err := s.Stats(gctx, walletID)
		out.Stats = stats
		return err
	})
	g.Go(func() error {
		tree, err := s.Tree(gctx, walletID)
		out.Tree = tree
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCommissionPercent changes the percent of one of the caller's direct
// downline members. Writes always go to the live source.
func (s *Service) UpdateCommissionPercent(ctx context.Context, fromWalletID int64, req *UpdateCommissionRequest) (*CommissionUpdate, error) {
	if req.NewPercent.IsNegative() || req.NewPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.ErrInvalidCommissionPercent
	}

	tree, err := s.source.Tree(ctx, fromWalletID)
	if err != nil {
		if shouldFallback(ctx, err) {
			return nil, errors.Wrap(errors.ErrSourceUnavailable, err.Error())
		}
		return nil, err
	}
	if !tree.IsBgAffiliate {
		return nil, errors.ErrNotBgAffiliate
	}

	node, ok := tree.DirectDownline(req.ToWalletID)
	if !ok {
		return nil, errors.ErrNotDirectDownline
	}
	if s.opts.CommissionNeverIncrease && req.NewPercent.GreaterThan(node.CommissionPercent) {
		return nil, errors.ErrCommissionIncrease
	}

	if err := s.source.UpdateCommissionPercent(ctx, fromWalletID, req.ToWalletID, req.NewPercent); err != nil {
		if shouldFallback(ctx, err) {
			return nil, errors.Wrap(errors.ErrSourceUnavailable, err.Error())
		}
		return nil, err
	}

	update := &CommissionUpdate{
		FromWalletID:    fromWalletID,
		ToWalletID:      req.ToWalletID,
		PreviousPercent: node.CommissionPercent,
		NewPercent:      req.NewPercent,
		UpdatedAt:       time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, snapshotKey(fromWalletID)); err != nil {
			s.logger.Warn("Failed to invalidate downline snapshot", map[string]interface{}{
				"wallet_id": fromWalletID,
				"error":     err.Error(),
			})
		}
	}
	if s.notifier != nil {
		s.notifier.Publish(req.ToWalletID, EventCommissionUpdated, update)
	}

	s.logger.Info("Commission percent updated", map[string]interface{}{
		"from_wallet_id":   fromWalletID,
		"to_wallet_id":     req.ToWalletID,
		"previous_percent": node.CommissionPercent.String(),
		"new_percent":      req.NewPercent.String(),
	})

	return update, nil
}
