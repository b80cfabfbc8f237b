package models

import "time"

const (
	BuyRequestPending  = "pending"
	BuyRequestApproved = "approved"
)

// BuyRequest is a fixed-price purchase request on a book.
type BuyRequest struct {
	ID          int64     `db:"id" json:"id"`
	BookID      int64     `db:"book_id" json:"book_id"`
	BuyerID     string    `db:"buyer_id" json:"buyer_id"`
	BuyerStatus string    `db:"buyer_status" json:"buyer_status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BuyStatus is returned by the buy-status lookup; Status is nil when the
// caller has not requested the book.
type BuyStatus struct {
	BookID  int64   `json:"book_id"`
	BuyerID string  `json:"buyer_id"`
	Status  *string `json:"buyer_status"`
}

// PendingSale is one row of the admin settlement queue: either a pending
// buy request on an approved sale or a finalized auction awaiting approval.
type PendingSale struct {
	BookID           int64    `db:"book_id" json:"book_id"`
	RequestedBuyerID string   `db:"requested_buyer_id" json:"requested_buyer_id"`
	BuyerStatus      string   `db:"buyer_status" json:"buyer_status"`
	BookName         string   `db:"book_name" json:"book_name"`
	Author           string   `db:"author" json:"author"`
	Edition          string   `db:"edition" json:"edition"`
	BookCover        string   `db:"book_cover" json:"book_cover"`
	Type             BookType `db:"type" json:"type"`
	SellPrice        *int64   `db:"sell_price" json:"sell_price,omitempty"`
	MinBidPrice      *int64   `db:"min_bid_price" json:"min_bid_price,omitempty"`
	MaxBid           *int64   `db:"max_bid" json:"max_bid,omitempty"`
	BuyerName        *string  `db:"buyer_name" json:"buyer_name,omitempty"`
	SellerName       *string  `db:"seller_name" json:"seller_name,omitempty"`
	SellerEmail      string   `db:"seller_email" json:"seller_email"`
}

// Price is the settlement amount: sell_price for sales, max_bid for auctions.
func (p PendingSale) Price() int64 {
	if p.Type == TypeAuction && p.MaxBid != nil {
		return *p.MaxBid
	}
	if p.SellPrice != nil {
		return *p.SellPrice
	}
	return 0
}
