package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-book-exchange/internal/dto"
	"github.com/noah-isme/campus-book-exchange/internal/middleware"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/internal/service"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
	"github.com/noah-isme/campus-book-exchange/pkg/response"
)

type listingService interface {
	Approve(ctx context.Context, id int64) (*models.Book, error)
	Reject(ctx context.Context, id int64) error
	SetSellTerms(ctx context.Context, actor models.Actor, id int64, req dto.SellTermsRequest) error
	CancelSell(ctx context.Context, actor models.Actor, id int64) error
	SetAuctionTerms(ctx context.Context, actor models.Actor, id int64, req dto.AuctionTermsRequest) error
	CancelAuction(ctx context.Context, actor models.Actor, id int64) error
	Create(ctx context.Context, actor models.Actor, input dto.BookInput, cover *service.Upload) (*models.Book, error)
	Update(ctx context.Context, actor models.Actor, id int64, input dto.BookInput, cover *service.Upload) (*models.Book, error)
	Get(ctx context.Context, id int64) (*models.Book, error)
	Marketplace(ctx context.Context, query dto.BookListQuery) (*dto.BookListResult, bool, error)
	MyBooks(ctx context.Context, email string) ([]models.Book, error)
	PendingApproval(ctx context.Context) ([]models.Book, error)
}

// BookHandler exposes listing endpoints.
type BookHandler struct {
	listings  listingService
	maxUpload int64
}

// NewBookHandler constructs BookHandler.
func NewBookHandler(listings listingService, maxUpload int64) *BookHandler {
	return &BookHandler{listings: listings, maxUpload: maxUpload}
}

// Marketplace godoc
// @Summary List books on sale or auction
// @Tags Books
// @Produce json
// @Param q query string false "Search by title or author"
// @Param department query string false "Department"
// @Param semester query string false "Semester"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /books [get]
func (h *BookHandler) Marketplace(c *gin.Context) {
	var query dto.BookListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	result, hit, err := h.listings.Marketplace(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result.Books, &result.Pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a book
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [get]
func (h *BookHandler) Get(c *gin.Context) {
	id, err := bookID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	book, err := h.listings.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Create godoc
// @Summary Upload a book
// @Tags Books
// @Accept mpfd
// @Produce json
// @Param book_name formData string true "Title"
// @Param author formData string true "Author"
// @Param edition formData string false "Edition"
// @Param description formData string false "Description"
// @Param conditions formData string false "Condition"
// @Param semester formData string false "Semester"
// @Param department formData string false "Department"
// @Param book_cover formData file true "Cover image"
// @Success 201 {object} response.Envelope
// @Router /books [post]
func (h *BookHandler) Create(c *gin.Context) {
	var input dto.BookInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid book details"))
		return
	}
	cover, closeFn, err := formUpload(c, "book_cover", h.maxUpload, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	book, err := h.listings.Create(c.Request.Context(), actorFromContext(c), input, cover)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Book uploaded successfully", book)
}

// Update godoc
// @Summary Update a book
// @Tags Books
// @Accept mpfd
// @Produce json
// @Param id path int true "Book ID"
// @Param book_name formData string true "Title"
// @Param author formData string true "Author"
// @Param book_cover formData file false "Replacement cover"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [put]
func (h *BookHandler) Update(c *gin.Context) {
	id, err := bookID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var input dto.BookInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid book details"))
		return
	}
	cover, closeFn, err := formUpload(c, "book_cover", h.maxUpload, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	book, err := h.listings.Update(c.Request.Context(), actorFromContext(c), id, input, cover)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Book updated successfully", book)
}

// MyBooks godoc
// @Summary List the caller's books
// @Tags Books
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/me/books [get]
func (h *BookHandler) MyBooks(c *gin.Context) {
	books, err := h.listings.MyBooks(c.Request.Context(), actorFromContext(c).Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, books, nil)
}

// PendingApproval godoc
// @Summary List books awaiting approval
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/books/pending [get]
func (h *BookHandler) PendingApproval(c *gin.Context) {
	books, err := h.listings.PendingApproval(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, books, nil)
}

// Approve godoc
// @Summary Approve a pending listing
// @Tags Admin
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/books/{id}/approve [post]
func (h *BookHandler) Approve(c *gin.Context) {
	id, err := bookID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	book, err := h.listings.Approve(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Book approved successfully", book)
}

// Reject godoc
// @Summary Reject a listing
// @Tags Admin
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /admin/books/{id}/reject [post]
func (h *BookHandler) Reject(c *gin.Context) {
	h.run(c, "Book rejected successfully", func(ctx context.Context, _ models.Actor, id int64) error {
		return h.listings.Reject(ctx, id)
	})
}

// SetSellTerms godoc
// @Summary Offer a book for a fixed price
// @Tags Books
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Param payload body dto.SellTermsRequest true "Price"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/sell [post]
func (h *BookHandler) SetSellTerms(c *gin.Context) {
	var req dto.SellTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "sell_price is required"))
		return
	}
	h.run(c, "Book price added successfully", func(ctx context.Context, actor models.Actor, id int64) error {
		return h.listings.SetSellTerms(ctx, actor, id, req)
	})
}

// CancelSell godoc
// @Summary Withdraw a fixed-price offer
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/sell/cancel [post]
func (h *BookHandler) CancelSell(c *gin.Context) {
	h.run(c, "Sell request cancelled successfully", h.listings.CancelSell)
}

// SetAuctionTerms godoc
// @Summary Open an auction
// @Tags Books
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Param payload body dto.AuctionTermsRequest true "Auction terms"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/auction [post]
func (h *BookHandler) SetAuctionTerms(c *gin.Context) {
	var req dto.AuctionTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "min_bid_price and bid_period are required"))
		return
	}
	h.run(c, "Auction details added successfully", func(ctx context.Context, actor models.Actor, id int64) error {
		return h.listings.SetAuctionTerms(ctx, actor, id, req)
	})
}

// CancelAuction godoc
// @Summary Cancel an auction
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/auction/cancel [post]
func (h *BookHandler) CancelAuction(c *gin.Context) {
	h.run(c, "Auction cancelled successfully", h.listings.CancelAuction)
}

func (h *BookHandler) run(c *gin.Context, message string, fn func(context.Context, models.Actor, int64) error) {
	id, err := bookID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := fn(c.Request.Context(), actorFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, message, nil)
}
