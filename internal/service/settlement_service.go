package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-book-exchange/internal/dto"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/internal/repository"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
)

// Settlement kinds used for logging and metrics.
const (
	SettlementApproveSale        = "approve_sale"
	SettlementFinalizeAuction    = "finalize_auction"
	SettlementApproveAuctionSale = "approve_auction_sale"
	SettlementAuctionFailed      = "auction_failed"
	SettlementRemoveBook         = "remove_book"
)

type settlementRunner interface {
	Run(ctx context.Context, fn func(repository.SettlementOps) error) error
}

type pendingSalesStore interface {
	ListPendingSales(ctx context.Context) ([]models.PendingSale, error)
}

type notifier interface {
	Notify(notifications []models.Notification)
}

// SettlementResult summarises a committed settlement.
type SettlementResult struct {
	BookID        int64                 `json:"book_id"`
	Kind          string                `json:"kind"`
	Notifications []models.Notification `json:"notifications,omitempty"`
}

// SettlementService moves books through sale and auction completion. Each
// operation is one transaction that starts by locking the book row.
type SettlementService struct {
	runner    settlementRunner
	sales     pendingSalesStore
	notifier  notifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSettlementService constructs a SettlementService.
func NewSettlementService(runner settlementRunner, sales pendingSalesStore, n notifier, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SettlementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{runner: runner, sales: sales, notifier: n, cache: cache, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// ApproveSale sells a fixed-price book to the buyer whose request is pending.
// Competing requests, the remaining requests and the book are removed, and
// both parties are notified.
func (s *SettlementService) ApproveSale(ctx context.Context, req dto.SettlementRequest) (*SettlementResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "book_id and buyer_id are required")
	}
	return s.settle(ctx, SettlementApproveSale, req.BookID, func(ops repository.SettlementOps, res *SettlementResult) error {
		book, err := ops.LockBook(ctx, req.BookID)
		if err != nil {
			return storeError(err, "book not found", "failed to lock book")
		}
		if book.Type != models.TypeSale || book.Status != models.StatusSellApproved {
			return appErrors.Clone(appErrors.ErrInvalidState, "book is not an approved fixed-price listing")
		}
		if err := ops.ApproveBuyRequest(ctx, book.ID, req.BuyerID); err != nil {
			return storeError(err, "no pending buy request for this buyer", "failed to approve buy request")
		}
		if _, err := ops.DeleteCompetingRequests(ctx, book.ID, req.BuyerID); err != nil {
			return appErrors.Internal(err, "failed to remove competing requests")
		}
		seller, buyer, err := resolveParties(ctx, ops, book.UploaderID, req.BuyerID)
		if err != nil {
			return err
		}

		var price int64
		if book.SellPrice != nil {
			price = *book.SellPrice
		}
		if err := s.notify(ctx, ops, res,
			notice{buyer.Email, saleBuyerNotice(book.BookName, seller.DisplayName(), price)},
			notice{seller.Email, saleSellerNotice(book.BookName, buyer.DisplayName(), price)},
		); err != nil {
			return err
		}
		return retire(ctx, ops, book.ID)
	})
}

// FinalizeAuction closes an approved auction with a qualifying bid: the book
// goes back to library with the winner pending admin approval. The status
// check under the row lock makes this happen at most once per auction.
func (s *SettlementService) FinalizeAuction(ctx context.Context, actor models.Actor, id int64) (*SettlementResult, error) {
	return s.settle(ctx, SettlementFinalizeAuction, id, func(ops repository.SettlementOps, res *SettlementResult) error {
		book, err := ops.LockBook(ctx, id)
		if err != nil {
			return storeError(err, "book not found", "failed to lock book")
		}
		if err := authorizeOwner(actor, book); err != nil {
			return err
		}
		if book.Type != models.TypeAuction || book.Status != models.StatusAuctionApproved {
			return appErrors.Clone(appErrors.ErrInvalidState, "auction is not running")
		}
		if !book.HasQualifyingBid() {
			return appErrors.Clone(appErrors.ErrInvalidBid, "no valid bid received")
		}
		seller, buyer, err := resolveParties(ctx, ops, book.UploaderID, book.Winner())
		if err != nil {
			return err
		}
		if err := ops.MarkAuctionFinalized(ctx, book.ID); err != nil {
			return storeError(err, "book not found", "failed to finalize auction")
		}
		return s.notify(ctx, ops, res,
			notice{buyer.Email, auctionWonNotice(book.BookName, *book.MaxBid)},
			notice{seller.Email, auctionCompletedNotice(book.BookName)},
		)
	})
}

// ApproveAuctionSale confirms a finalized auction's winner, notifies both
// parties citing the approving admin and removes the listing.
func (s *SettlementService) ApproveAuctionSale(ctx context.Context, actor models.Actor, req dto.SettlementRequest) (*SettlementResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "book_id and buyer_id are required")
	}
	return s.settle(ctx, SettlementApproveAuctionSale, req.BookID, func(ops repository.SettlementOps, res *SettlementResult) error {
		book, err := ops.LockBook(ctx, req.BookID)
		if err != nil {
			return storeError(err, "book not found", "failed to lock book")
		}
		if book.Status != models.StatusLibrary || book.Type != models.TypeAuction || !book.AwaitingApproval() {
			return appErrors.Clone(appErrors.ErrInvalidState, "auction has not been finalized")
		}
		if book.Winner() != req.BuyerID {
			return appErrors.Clone(appErrors.ErrInvalidState, "buyer is not the auction winner")
		}
		seller, buyer, err := resolveParties(ctx, ops, book.UploaderID, book.Winner())
		if err != nil {
			return err
		}
		admin := actor.FullName
		if admin == "" {
			admin = actor.Email
		}
		if err := s.notify(ctx, ops, res,
			notice{buyer.Email, auctionSaleBuyerNotice(book.BookName, seller.DisplayName(), *book.MaxBid, admin)},
			notice{seller.Email, auctionSaleSellerNotice(book.BookName, buyer.DisplayName(), *book.MaxBid, admin)},
		); err != nil {
			return err
		}
		return retire(ctx, ops, book.ID)
	})
}

// AuctionFailed tells the seller nobody bid and reverts the auction.
func (s *SettlementService) AuctionFailed(ctx context.Context, actor models.Actor, id int64) (*SettlementResult, error) {
	return s.settle(ctx, SettlementAuctionFailed, id, func(ops repository.SettlementOps, res *SettlementResult) error {
		book, err := ops.LockBook(ctx, id)
		if err != nil {
			return storeError(err, "book not found", "failed to lock book")
		}
		if err := authorizeOwner(actor, book); err != nil {
			return err
		}
		if book.Type != models.TypeAuction {
			return appErrors.Clone(appErrors.ErrInvalidState, "book is not an auction")
		}
		if book.HasQualifyingBid() {
			return appErrors.Clone(appErrors.ErrInvalidState, "auction did not fail; a valid bid was received")
		}
		seller, err := ops.FindUser(ctx, book.UploaderID)
		if err != nil {
			return storeError(err, "seller not found", "failed to load seller")
		}
		if err := s.notify(ctx, ops, res, notice{seller.Email, auctionFailedNotice(book.BookName)}); err != nil {
			return err
		}
		if err := ops.RevertAuction(ctx, book.ID); err != nil {
			return storeError(err, "book not found", "failed to revert auction")
		}
		return nil
	})
}

// RemoveBook deletes a listing and its buy requests.
func (s *SettlementService) RemoveBook(ctx context.Context, actor models.Actor, id int64) error {
	_, err := s.settle(ctx, SettlementRemoveBook, id, func(ops repository.SettlementOps, _ *SettlementResult) error {
		book, err := ops.LockBook(ctx, id)
		if err != nil {
			return storeError(err, "book not found", "failed to lock book")
		}
		if err := authorizeOwner(actor, book); err != nil {
			return err
		}
		return retire(ctx, ops, book.ID)
	})
	return err
}

// PendingSales lists settlements awaiting an admin.
func (s *SettlementService) PendingSales(ctx context.Context) ([]models.PendingSale, error) {
	rows, err := s.sales.ListPendingSales(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pending sales")
	}
	if rows == nil {
		rows = []models.PendingSale{}
	}
	return rows, nil
}

type notice struct {
	email   string
	message string
}

func (s *SettlementService) settle(ctx context.Context, kind string, id int64, fn func(repository.SettlementOps, *SettlementResult) error) (*SettlementResult, error) {
	res := &SettlementResult{BookID: id, Kind: kind}
	err := s.runner.Run(ctx, func(ops repository.SettlementOps) error {
		res.Notifications = res.Notifications[:0]
		return fn(ops, res)
	})
	if err != nil {
		s.metrics.RecordSettlement(kind, OutcomeRejected)
		err = storeError(err, "book not found", "settlement failed")
		if appErr := appErrors.FromError(err); appErr.Status >= 500 {
			s.logger.Error("settlement failed", zap.String("kind", kind), zap.Int64("book_id", id), zap.Error(err))
		}
		return nil, err
	}
	s.metrics.RecordSettlement(kind, OutcomeAccepted)
	s.cache.Invalidate(ctx, marketplaceCachePattern)
	if s.notifier != nil && len(res.Notifications) > 0 {
		s.notifier.Notify(res.Notifications)
	}
	s.logger.Info("settlement committed", zap.String("kind", kind), zap.Int64("book_id", id), zap.Int("notifications", len(res.Notifications)))
	return res, nil
}

func (s *SettlementService) notify(ctx context.Context, ops repository.SettlementOps, res *SettlementResult, notices ...notice) error {
	at := s.now().UTC()
	for _, n := range notices {
		created, err := ops.InsertNotification(ctx, n.email, n.message, at)
		if err != nil {
			return appErrors.Internal(err, "failed to record notification")
		}
		res.Notifications = append(res.Notifications, *created)
	}
	return nil
}

func resolveParties(ctx context.Context, ops repository.SettlementOps, sellerEmail, buyerEmail string) (*models.User, *models.User, error) {
	seller, err := ops.FindUser(ctx, sellerEmail)
	if err != nil {
		return nil, nil, storeError(err, "seller not found", "failed to load seller")
	}
	buyer, err := ops.FindUser(ctx, buyerEmail)
	if err != nil {
		return nil, nil, storeError(err, "buyer not found", "failed to load buyer")
	}
	return seller, buyer, nil
}

func retire(ctx context.Context, ops repository.SettlementOps, id int64) error {
	if err := ops.DeleteRequests(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to remove buy requests")
	}
	if err := ops.DeleteBook(ctx, id); err != nil {
		return storeError(err, "book not found", "failed to remove book")
	}
	return nil
}
