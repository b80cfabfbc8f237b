package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-book-exchange/internal/dto"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/internal/service"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
	"github.com/noah-isme/campus-book-exchange/pkg/response"
)

type settlementService interface {
	ApproveSale(ctx context.Context, req dto.SettlementRequest) (*service.SettlementResult, error)
	FinalizeAuction(ctx context.Context, actor models.Actor, id int64) (*service.SettlementResult, error)
	ApproveAuctionSale(ctx context.Context, actor models.Actor, req dto.SettlementRequest) (*service.SettlementResult, error)
	AuctionFailed(ctx context.Context, actor models.Actor, id int64) (*service.SettlementResult, error)
	RemoveBook(ctx context.Context, actor models.Actor, id int64) error
	PendingSales(ctx context.Context) ([]models.PendingSale, error)
}

type salesExporter interface {
	PendingSalesExport(ctx context.Context, format string) (*service.ExportFile, error)
}

// SettlementHandler exposes sale approval and auction completion endpoints.
type SettlementHandler struct {
	settlements settlementService
	reports     salesExporter
}

// NewSettlementHandler constructs SettlementHandler.
func NewSettlementHandler(settlements settlementService, reports salesExporter) *SettlementHandler {
	return &SettlementHandler{settlements: settlements, reports: reports}
}

// ApproveSale godoc
// @Summary Approve a fixed-price sale
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.SettlementRequest true "Book and buyer"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/sales/approve [post]
func (h *SettlementHandler) ApproveSale(c *gin.Context) {
	var req dto.SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "book_id and buyer_id are required"))
		return
	}
	result, err := h.settlements.ApproveSale(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Book sold successfully", result)
}

// ApproveAuctionSale godoc
// @Summary Approve an auction winner
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.SettlementRequest true "Book and winner"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/auctions/approve [post]
func (h *SettlementHandler) ApproveAuctionSale(c *gin.Context) {
	var req dto.SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "book_id and buyer_id are required"))
		return
	}
	result, err := h.settlements.ApproveAuctionSale(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Auction sale approved successfully", result)
}

// FinalizeAuction godoc
// @Summary Close an auction with a winner
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /books/{id}/auction/finalize [post]
func (h *SettlementHandler) FinalizeAuction(c *gin.Context) {
	h.settleBook(c, "Auction finalized successfully", h.settlements.FinalizeAuction)
}

// AuctionFailed godoc
// @Summary Close an auction without bids
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /books/{id}/auction/failed [post]
func (h *SettlementHandler) AuctionFailed(c *gin.Context) {
	h.settleBook(c, "Auction closed without bids", h.settlements.AuctionFailed)
}

// RemoveBook godoc
// @Summary Delete a book and its buy requests
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [delete]
func (h *SettlementHandler) RemoveBook(c *gin.Context) {
	id, err := bookID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.settlements.RemoveBook(c.Request.Context(), actorFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Book deleted successfully", nil)
}

// PendingSales godoc
// @Summary List sales awaiting approval
// @Description With format=csv or format=pdf the list is returned as a download.
// @Tags Admin
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /admin/sales/pending [get]
func (h *SettlementHandler) PendingSales(c *gin.Context) {
	if format := strings.TrimSpace(c.Query("format")); format != "" && format != "json" {
		file, err := h.reports.PendingSalesExport(c.Request.Context(), format)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=\""+file.Name+"\"")
		c.Data(http.StatusOK, file.ContentType, file.Data)
		return
	}
	rows, err := h.settlements.PendingSales(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

func (h *SettlementHandler) settleBook(c *gin.Context, message string, fn func(context.Context, models.Actor, int64) (*service.SettlementResult, error)) {
	id, err := bookID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := fn(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, message, result)
}
