package dto

import "github.com/noah-isme/campus-book-exchange/internal/models"

// SellTermsRequest sets a fixed price on a book.
type SellTermsRequest struct {
	SellPrice int64 `json:"sell_price" validate:"required,gt=0"`
}

// AuctionTermsRequest opens an auction on a book.
type AuctionTermsRequest struct {
	MinBidPrice int64 `json:"min_bid_price" validate:"required,gt=0"`
	// BidPeriod is the auction length in seconds.
	BidPeriod int64 `json:"bid_period" validate:"required,gt=0"`
}

// PlaceBidRequest submits a bid. BuyerEmail defaults to the caller.
type PlaceBidRequest struct {
	BidPrice   int64  `json:"bid_price" validate:"required,gt=0"`
	BuyerEmail string `json:"buyer_email" validate:"omitempty,email"`
}

// BuyRequestPayload creates or cancels a buy request. BuyerEmail defaults
// to the caller.
type BuyRequestPayload struct {
	BuyerEmail string `json:"buyer_email" validate:"omitempty,email"`
}

// SettlementRequest is sent by admins to approve a sale or auction winner.
type SettlementRequest struct {
	BookID  int64  `json:"book_id" validate:"required,gt=0"`
	BuyerID string `json:"buyer_id" validate:"required,email"`
}

// BidResult is returned after an accepted bid.
type BidResult struct {
	BookID  int64  `json:"book_id"`
	MaxBid  int64  `json:"max_bid"`
	BuyerID string `json:"buyer_id"`
}

// BookInput carries the multipart form fields of an upload or update.
type BookInput struct {
	BookName    string `form:"book_name" validate:"required,max=255"`
	Author      string `form:"author" validate:"required,max=255"`
	Edition     string `form:"edition" validate:"max=64"`
	Description string `form:"description" validate:"max=2000"`
	Conditions  string `form:"conditions" validate:"max=255"`
	Semester    string `form:"semester" validate:"max=32"`
	Department  string `form:"department" validate:"max=128"`
}

// BookListQuery mirrors the marketplace query string.
type BookListQuery struct {
	Search     string `form:"q"`
	Department string `form:"department"`
	Semester   string `form:"semester"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// BookListResult is the cached marketplace page.
type BookListResult struct {
	Books      []models.Book     `json:"books"`
	Pagination models.Pagination `json:"pagination"`
}
