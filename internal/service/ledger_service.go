package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-book-exchange/internal/dto"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/internal/repository"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
)

type bidStore interface {
	GetByID(ctx context.Context, id int64) (*models.Book, error)
	AcceptBid(ctx context.Context, id, observed, amount int64, bidder string) error
}

type buyRequestStore interface {
	Create(ctx context.Context, req *models.BuyRequest) error
	Find(ctx context.Context, bookID int64, buyerID string) (*models.BuyRequest, error)
	Delete(ctx context.Context, bookID int64, buyerID string) error
}

type userLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// LedgerConfig tunes bid acceptance.
type LedgerConfig struct {
	BidIncrement int64
	BidRetries   int
}

// LedgerService records bids and buy requests.
type LedgerService struct {
	books     bidStore
	requests  buyRequestStore
	users     userLookup
	cache     *CacheService
	metrics   *MetricsService
	cfg       LedgerConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(books bidStore, requests buyRequestStore, users userLookup, cache *CacheService, metrics *MetricsService, cfg LedgerConfig, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if cfg.BidIncrement <= 0 {
		cfg.BidIncrement = 20
	}
	if cfg.BidRetries <= 0 {
		cfg.BidRetries = 3
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{books: books, requests: requests, users: users, cache: cache, metrics: metrics, cfg: cfg, validator: validate, logger: logger}
}

// PlaceBid accepts a bid of at least the current price plus the increment.
// The write only lands if no other bid was accepted since the price was read;
// a lost race is retried against the fresh price.
func (s *LedgerService) PlaceBid(ctx context.Context, actor models.Actor, id int64, req dto.PlaceBidRequest) (*dto.BidResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "bid_price must be a positive amount")
	}
	bidder, err := resolveParty(actor, req.BuyerEmail)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < s.cfg.BidRetries; attempt++ {
		book, err := s.books.GetByID(ctx, id)
		if err != nil {
			return nil, storeError(err, "book not found", "failed to load book")
		}
		if book.Status != models.StatusAuctionApproved {
			s.metrics.RecordBid(OutcomeRejected)
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "auction is not open for bidding")
		}
		current := book.CurrentBid()
		minimum := current + s.cfg.BidIncrement
		if req.BidPrice < minimum {
			s.metrics.RecordBid(OutcomeRejected)
			return nil, appErrors.Clone(appErrors.ErrInvalidBid, fmt.Sprintf("bid must be at least %d", minimum))
		}

		err = s.books.AcceptBid(ctx, id, current, req.BidPrice, bidder)
		if err == nil {
			s.metrics.RecordBid(OutcomeAccepted)
			s.cache.Invalidate(ctx, marketplaceCachePattern)
			s.logger.Info("bid accepted", zap.Int64("book_id", id), zap.String("bidder", bidder), zap.Int64("amount", req.BidPrice))
			return &dto.BidResult{BookID: id, MaxBid: req.BidPrice, BuyerID: bidder}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to place bid")
		}
		s.logger.Debug("bid lost race, retrying", zap.Int64("book_id", id), zap.Int("attempt", attempt+1))
	}

	s.metrics.RecordBid(OutcomeConflict)
	return nil, appErrors.Clone(appErrors.ErrConflict, "bid collided with concurrent bids, please retry")
}

// RequestBuy registers interest in an approved fixed-price listing.
func (s *LedgerService) RequestBuy(ctx context.Context, actor models.Actor, id int64, req dto.BuyRequestPayload) (*models.BuyRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "buyer_email must be a valid email")
	}
	buyer, err := resolveParty(actor, req.BuyerEmail)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByEmail(ctx, buyer); err != nil {
		return nil, storeError(err, "buyer not found", "failed to load buyer")
	}
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "book not found", "failed to load book")
	}
	if book.Status != models.StatusSellApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "book is not available for purchase")
	}

	if _, err := s.requests.Find(ctx, id, buyer); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRequested, "you have already requested this book")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check buy requests")
	}

	request := &models.BuyRequest{BookID: id, BuyerID: buyer}
	if err := s.requests.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyRequested, "you have already requested this book")
		}
		return nil, appErrors.Internal(err, "failed to create buy request")
	}
	s.logger.Info("buy requested", zap.Int64("book_id", id), zap.String("buyer", buyer))
	return request, nil
}

// CancelBuy withdraws a buy request.
func (s *LedgerService) CancelBuy(ctx context.Context, actor models.Actor, id int64, req dto.BuyRequestPayload) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "buyer_email must be a valid email")
	}
	buyer, err := resolveParty(actor, req.BuyerEmail)
	if err != nil {
		return err
	}
	if err := s.requests.Delete(ctx, id, buyer); err != nil {
		return storeError(err, "buy request not found", "failed to cancel buy request")
	}
	return nil
}

// BuyStatus reports the caller's request status; Status is nil without one.
func (s *LedgerService) BuyStatus(ctx context.Context, actor models.Actor, id int64, buyerEmail string) (*models.BuyStatus, error) {
	buyer, err := resolveParty(actor, buyerEmail)
	if err != nil {
		return nil, err
	}
	result := &models.BuyStatus{BookID: id, BuyerID: buyer}
	req, err := s.requests.Find(ctx, id, buyer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return nil, appErrors.Internal(err, "failed to load buy status")
	}
	status := req.BuyerStatus
	result.Status = &status
	return result, nil
}
