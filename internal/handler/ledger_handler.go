package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-book-exchange/internal/dto"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/pkg/response"
)

type ledgerService interface {
	PlaceBid(ctx context.Context, actor models.Actor, id int64, req dto.PlaceBidRequest) (*dto.BidResult, error)
	RequestBuy(ctx context.Context, actor models.Actor, id int64, req dto.BuyRequestPayload) (*models.BuyRequest, error)
	CancelBuy(ctx context.Context, actor models.Actor, id int64, req dto.BuyRequestPayload) error
	BuyStatus(ctx context.Context, actor models.Actor, id int64, buyerEmail string) (*models.BuyStatus, error)
}

// LedgerHandler exposes bidding and buy request endpoints.
type LedgerHandler struct {
	ledger ledgerService
}

// NewLedgerHandler constructs LedgerHandler.
func NewLedgerHandler(ledger ledgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// PlaceBid godoc
// @Summary Bid on an auction
// @Tags Bids
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Param payload body dto.PlaceBidRequest true "Bid"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /books/{id}/bids [post]
func (h *LedgerHandler) PlaceBid(c *gin.Context) {
	id, err := bookID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.PlaceBidRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.ledger.PlaceBid(c.Request.Context(), actorFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Bid placed successfully", result)
}

// RequestBuy godoc
// @Summary Request to buy a book
// @Tags Bids
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Param payload body dto.BuyRequestPayload false "Buyer"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/buy-requests [post]
func (h *LedgerHandler) RequestBuy(c *gin.Context) {
	id, err := bookID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BuyRequestPayload
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	request, err := h.ledger.RequestBuy(c.Request.Context(), actorFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Buy request created successfully", request)
}

// CancelBuy godoc
// @Summary Withdraw a buy request
// @Tags Bids
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Param payload body dto.BuyRequestPayload false "Buyer"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/buy-requests [delete]
func (h *LedgerHandler) CancelBuy(c *gin.Context) {
	id, err := bookID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BuyRequestPayload
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.ledger.CancelBuy(c.Request.Context(), actorFromContext(c), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Buy request cancelled successfully", nil)
}

// BuyStatus godoc
// @Summary Buy request status
// @Tags Bids
// @Produce json
// @Param id path int true "Book ID"
// @Param buyer_email query string false "Buyer email, defaults to the caller"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/buy-requests/status [get]
func (h *LedgerHandler) BuyStatus(c *gin.Context) {
	id, err := bookID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	status, err := h.ledger.BuyStatus(c.Request.Context(), actorFromContext(c), id, c.Query("buyer_email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
