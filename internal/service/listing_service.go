package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-book-exchange/internal/dto"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
)

const marketplaceCachePattern = "books:*"

type bookStore interface {
	Create(ctx context.Context, book *models.Book) error
	UpdateDetails(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id int64) (*models.Book, error)
	List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error)
	CompareAndSetStatus(ctx context.Context, id int64, from, to models.BookStatus) error
	Reject(ctx context.Context, id int64) error
	SetSellTerms(ctx context.Context, id, price int64) error
	CancelSell(ctx context.Context, id int64) error
	SetAuctionTerms(ctx context.Context, id, minBid, period int64, now time.Time) error
	CancelAuction(ctx context.Context, id int64) error
}

type fileStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Delete(name string) error
}

// Upload is a file received with a multipart request.
type Upload struct {
	Name   string
	Reader io.Reader
}

// ListingService owns book records and their lifecycle status.
type ListingService struct {
	books     bookStore
	covers    fileStore
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewListingService constructs a ListingService.
func NewListingService(books bookStore, covers fileStore, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ListingService{books: books, covers: covers, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger, now: time.Now}
}

func approvedStatus(status models.BookStatus) (models.BookStatus, bool) {
	switch status {
	case models.StatusSellPending:
		return models.StatusSellApproved, true
	case models.StatusAuctionPending:
		return models.StatusAuctionApproved, true
	}
	return "", false
}

// Approve publishes a pending listing. Only one of two concurrent approvals
// succeeds; the other sees INVALID_STATE.
func (s *ListingService) Approve(ctx context.Context, id int64) (*models.Book, error) {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "book not found", "failed to load book")
	}
	next, ok := approvedStatus(book.Status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("book is %s, not pending approval", book.Status))
	}
	if err := s.books.CompareAndSetStatus(ctx, id, book.Status, next); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to approve book")
		}
		if _, err := s.books.GetByID(ctx, id); err != nil {
			return nil, storeError(err, "book not found", "failed to load book")
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "book was changed by another request")
	}
	book.Status = next
	s.invalidate(ctx)
	s.logger.Info("book approved", zap.Int64("book_id", id), zap.String("status", string(next)))
	return book, nil
}

// Reject sends a book back to the library whatever its status.
func (s *ListingService) Reject(ctx context.Context, id int64) error {
	if err := s.books.Reject(ctx, id); err != nil {
		return storeError(err, "book not found", "failed to reject book")
	}
	s.invalidate(ctx)
	s.logger.Info("book rejected", zap.Int64("book_id", id))
	return nil
}

// SetSellTerms offers the book for a fixed price, pending approval.
func (s *ListingService) SetSellTerms(ctx context.Context, actor models.Actor, id int64, req dto.SellTermsRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "sell_price must be a positive amount")
	}
	if err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	if err := s.books.SetSellTerms(ctx, id, req.SellPrice); err != nil {
		return storeError(err, "book not found", "failed to set sell price")
	}
	s.invalidate(ctx)
	return nil
}

// CancelSell withdraws a fixed-price offer.
func (s *ListingService) CancelSell(ctx context.Context, actor models.Actor, id int64) error {
	if err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	if err := s.books.CancelSell(ctx, id); err != nil {
		return storeError(err, "book not found", "failed to cancel sale")
	}
	s.invalidate(ctx)
	return nil
}

// SetAuctionTerms opens an auction pending approval. bid_end is now+period.
func (s *ListingService) SetAuctionTerms(ctx context.Context, actor models.Actor, id int64, req dto.AuctionTermsRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "min_bid_price and bid_period must be positive")
	}
	if err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	if err := s.books.SetAuctionTerms(ctx, id, req.MinBidPrice, req.BidPeriod, s.now().UTC()); err != nil {
		return storeError(err, "book not found", "failed to set auction details")
	}
	s.invalidate(ctx)
	return nil
}

// CancelAuction clears all auction data and returns the book to the library.
func (s *ListingService) CancelAuction(ctx context.Context, actor models.Actor, id int64) error {
	if err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	if err := s.books.CancelAuction(ctx, id); err != nil {
		return storeError(err, "book not found", "failed to cancel auction")
	}
	s.invalidate(ctx)
	return nil
}

func (s *ListingService) authorize(ctx context.Context, actor models.Actor, id int64) error {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return storeError(err, "book not found", "failed to load book")
	}
	if err := authorizeOwner(actor, book); err != nil {
		return err
	}
	if book.Status == models.StatusSold {
		return appErrors.Clone(appErrors.ErrInvalidState, "book has already been sold")
	}
	return nil
}

// Create stores an uploaded book with its cover. The cover file is removed
// again if the row cannot be written.
func (s *ListingService) Create(ctx context.Context, actor models.Actor, input dto.BookInput, cover *Upload) (*models.Book, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err, "invalid book details")
	}
	if actor.Email == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if cover == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "book_cover is required")
	}
	stored, err := s.covers.Save(cover.Name, cover.Reader)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store cover")
	}

	book := &models.Book{
		BookName:    input.BookName,
		Author:      input.Author,
		Edition:     input.Edition,
		Description: input.Description,
		Conditions:  input.Conditions,
		BookCover:   stored,
		Semester:    input.Semester,
		Department:  input.Department,
		UploaderID:  actor.Email,
	}
	if err := s.books.Create(ctx, book); err != nil {
		s.removeCover(stored)
		return nil, appErrors.Internal(err, "failed to save book")
	}
	s.logger.Info("book uploaded", zap.Int64("book_id", book.ID), zap.String("uploader", actor.Email))
	return book, nil
}

// Update rewrites a book's details. A new cover replaces the old file, which
// is deleted best-effort after the row is updated.
func (s *ListingService) Update(ctx context.Context, actor models.Actor, id int64, input dto.BookInput, cover *Upload) (*models.Book, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err, "invalid book details")
	}
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "book not found", "failed to load book")
	}
	if err := authorizeOwner(actor, book); err != nil {
		return nil, err
	}

	previous := book.BookCover
	if cover != nil {
		stored, err := s.covers.Save(cover.Name, cover.Reader)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to store cover")
		}
		book.BookCover = stored
	}
	book.BookName = input.BookName
	book.Author = input.Author
	book.Edition = input.Edition
	book.Description = input.Description
	book.Conditions = input.Conditions
	book.Semester = input.Semester
	book.Department = input.Department

	if err := s.books.UpdateDetails(ctx, book); err != nil {
		if cover != nil {
			s.removeCover(book.BookCover)
		}
		return nil, storeError(err, "book not found", "failed to update book")
	}
	if cover != nil && previous != "" && previous != book.BookCover {
		s.removeCover(previous)
	}
	s.invalidate(ctx)
	return book, nil
}

// Get returns one book.
func (s *ListingService) Get(ctx context.Context, id int64) (*models.Book, error) {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "book not found", "failed to load book")
	}
	return book, nil
}

// Marketplace lists approved sales and auctions. Pages are cached until the
// next listing change.
func (s *ListingService) Marketplace(ctx context.Context, query dto.BookListQuery) (*dto.BookListResult, bool, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 || query.PageSize > 100 {
		query.PageSize = 20
	}
	key := marketplaceKey(query)

	var cached dto.BookListResult
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	books, total, err := s.books.List(ctx, models.BookFilter{
		Statuses:   []models.BookStatus{models.StatusSellApproved, models.StatusAuctionApproved},
		Search:     query.Search,
		Department: query.Department,
		Semester:   query.Semester,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to list books")
	}
	if books == nil {
		books = []models.Book{}
	}
	result := &dto.BookListResult{
		Books:      books,
		Pagination: models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total},
	}
	s.cache.Set(ctx, key, result, s.cacheTTL)
	return result, false, nil
}

// MyBooks lists every book uploaded by email.
func (s *ListingService) MyBooks(ctx context.Context, email string) ([]models.Book, error) {
	books, _, err := s.books.List(ctx, models.BookFilter{UploaderID: email, PageSize: 100})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list books")
	}
	return books, nil
}

// PendingApproval lists books waiting for moderation.
func (s *ListingService) PendingApproval(ctx context.Context) ([]models.Book, error) {
	books, _, err := s.books.List(ctx, models.BookFilter{
		Statuses: []models.BookStatus{models.StatusSellPending, models.StatusAuctionPending},
		PageSize: 100,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pending books")
	}
	return books, nil
}

// InvalidateMarketplace drops cached marketplace pages.
func (s *ListingService) InvalidateMarketplace(ctx context.Context) {
	s.invalidate(ctx)
}

func (s *ListingService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, marketplaceCachePattern)
}

func (s *ListingService) removeCover(name string) {
	if err := s.covers.Delete(name); err != nil {
		s.logger.Warn("failed to delete cover", zap.String("file", name), zap.Error(err))
	}
}

func marketplaceKey(q dto.BookListQuery) string {
	values := url.Values{}
	values.Set("q", q.Search)
	values.Set("department", q.Department)
	values.Set("semester", q.Semester)
	values.Set("page", fmt.Sprint(q.Page))
	values.Set("size", fmt.Sprint(q.PageSize))
	return "books:list:" + values.Encode()
}
