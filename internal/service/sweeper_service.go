package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-book-exchange/internal/models"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
	"github.com/noah-isme/campus-book-exchange/pkg/jobs"
)

const (
	sweepJobKind   = "settle_auction"
	sweepBatchSize = 100
)

type expiredAuctionStore interface {
	ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]models.ExpiredAuction, error)
}

type auctionSettler interface {
	FinalizeAuction(ctx context.Context, actor models.Actor, id int64) (*SettlementResult, error)
	AuctionFailed(ctx context.Context, actor models.Actor, id int64) (*SettlementResult, error)
}

// sweeperActor is the identity used for automatic settlements.
var sweeperActor = models.Actor{Email: "system@auction-sweeper", FullName: "auction sweeper", Admin: true}

// SweeperService settles auctions whose bid_end has passed. A ticker scans for
// expired auctions and a job queue settles each book; a book already queued
// is not queued again.
type SweeperService struct {
	store    expiredAuctionStore
	settler  auctionSettler
	queue    *jobs.Queue
	interval time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeperService constructs a SweeperService.
func NewSweeperService(store expiredAuctionStore, settler auctionSettler, interval time.Duration, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *SweeperService {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SweeperService{store: store, settler: settler, interval: interval, metrics: metrics, logger: logger, now: time.Now}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("auction-sweeper", s.handle, cfg)
	return s
}

// Start launches the ticker and the settlement workers.
func (s *SweeperService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.queue.Start(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Warn("auction sweep failed", zap.Error(err))
				}
			}
		}
	}()
	s.logger.Info("auction sweeper started", zap.Duration("interval", s.interval))
}

// Stop halts the ticker and waits for in-flight settlements.
func (s *SweeperService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.queue.Stop()
}

// Sweep queues every expired auction and returns how many were queued.
func (s *SweeperService) Sweep(ctx context.Context) (int, error) {
	s.metrics.RecordSweep()
	expired, err := s.store.ListExpiredAuctions(ctx, s.now().UTC(), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, auction := range expired {
		job := jobs.Job{Kind: sweepJobKind, Key: fmt.Sprintf("auction:%d", auction.ID), Payload: auction.ID}
		switch err := s.queue.TryEnqueue(job); {
		case err == nil:
			queued++
		case errors.Is(err, jobs.ErrDuplicate):
		default:
			s.logger.Warn("auction not queued", zap.Int64("book_id", auction.ID), zap.Error(err))
		}
	}
	return queued, nil
}

func (s *SweeperService) handle(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(int64)
	if !ok {
		return fmt.Errorf("unexpected sweeper payload %T", job.Payload)
	}
	_, err := s.settler.FinalizeAuction(ctx, sweeperActor, id)
	if errors.Is(err, appErrors.ErrInvalidBid) {
		_, err = s.settler.AuctionFailed(ctx, sweeperActor, id)
	}
	switch {
	case err == nil:
		s.logger.Info("expired auction settled", zap.Int64("book_id", id))
		return nil
	case errors.Is(err, appErrors.ErrInvalidState), errors.Is(err, appErrors.ErrNotFound):
		// settled by someone else first
		return nil
	default:
		return err
	}
}
