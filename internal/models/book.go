package models

import "time"

// BookStatus is the lifecycle position of a listing.
type BookStatus string

const (
	StatusSellPending     BookStatus = "sell_pending"
	StatusSellApproved    BookStatus = "sell_approved"
	StatusAuctionPending  BookStatus = "auction_pending"
	StatusAuctionApproved BookStatus = "auction_approved"
	StatusLibrary         BookStatus = "library"
	StatusSold            BookStatus = "sold"
)

// BookType says how a listing is offered.
type BookType string

const (
	TypeNone    BookType = "none"
	TypeSale    BookType = "sale"
	TypeAuction BookType = "auction"
)

// BuyerStatusPending marks an auction winner awaiting admin approval.
const BuyerStatusPending = "pending"

// Book represents a row in the books table.
type Book struct {
	ID          int64      `db:"id" json:"id"`
	BookName    string     `db:"book_name" json:"book_name"`
	Author      string     `db:"author" json:"author"`
	Edition     string     `db:"edition" json:"edition"`
	Description string     `db:"description" json:"description"`
	Conditions  string     `db:"conditions" json:"conditions"`
	BookCover   string     `db:"book_cover" json:"book_cover"`
	Semester    string     `db:"semester" json:"semester"`
	Department  string     `db:"department" json:"department"`
	UploaderID  string     `db:"uploader_id" json:"uploader_id"`
	Type        BookType   `db:"type" json:"type"`
	Status      BookStatus `db:"status" json:"status"`
	SellPrice   *int64     `db:"sell_price" json:"sell_price,omitempty"`
	MinBidPrice *int64     `db:"min_bid_price" json:"min_bid_price,omitempty"`
	MaxBid      *int64     `db:"max_bid" json:"max_bid,omitempty"`
	BidPeriod   *int64     `db:"bid_period" json:"bid_period,omitempty"`
	BidEnd      *int64     `db:"bid_end" json:"bid_end,omitempty"`
	BuyerID     *string    `db:"buyer_id" json:"buyer_id,omitempty"`
	BuyerStatus *string    `db:"buyer_status" json:"buyer_status,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// CurrentBid is the amount the next bid has to beat: max_bid when set,
// otherwise min_bid_price.
func (b *Book) CurrentBid() int64 {
	if b.MaxBid != nil {
		return *b.MaxBid
	}
	if b.MinBidPrice != nil {
		return *b.MinBidPrice
	}
	return 0
}

// HasQualifyingBid reports whether someone bid above the opening price.
func (b *Book) HasQualifyingBid() bool {
	if b.BuyerID == nil || *b.BuyerID == "" || b.MaxBid == nil {
		return false
	}
	minBid := int64(0)
	if b.MinBidPrice != nil {
		minBid = *b.MinBidPrice
	}
	return *b.MaxBid > minBid
}

// Winner returns the recorded highest bidder or "".
func (b *Book) Winner() string {
	if b.BuyerID == nil {
		return ""
	}
	return *b.BuyerID
}

// AwaitingApproval reports whether FinalizeAuction recorded a winner that an
// admin has yet to confirm.
func (b *Book) AwaitingApproval() bool {
	return b.Winner() != "" && b.MaxBid != nil && b.BuyerStatus != nil && *b.BuyerStatus == BuyerStatusPending
}

// Consistent checks that sale statuses carry type sale and auction
// statuses carry type auction.
func (b *Book) Consistent() bool {
	switch b.Status {
	case StatusSellPending, StatusSellApproved:
		return b.Type == TypeSale
	case StatusAuctionPending, StatusAuctionApproved:
		return b.Type == TypeAuction
	}
	return true
}

// OwnedBy reports whether email uploaded the book.
func (b *Book) OwnedBy(email string) bool {
	return email != "" && b.UploaderID == email
}

// BookFilter narrows marketplace and admin listings.
type BookFilter struct {
	Statuses   []BookStatus
	UploaderID string
	Search     string
	Department string
	Semester   string
	Page       int
	PageSize   int
}

// ExpiredAuction is the projection scanned by the auction sweeper.
type ExpiredAuction struct {
	ID          int64   `db:"id"`
	MinBidPrice *int64  `db:"min_bid_price"`
	MaxBid      *int64  `db:"max_bid"`
	BuyerID     *string `db:"buyer_id"`
	BidEnd      *int64  `db:"bid_end"`
}

// HasQualifyingBid mirrors Book.HasQualifyingBid for the sweeper projection.
func (e ExpiredAuction) HasQualifyingBid() bool {
	b := Book{MinBidPrice: e.MinBidPrice, MaxBid: e.MaxBid, BuyerID: e.BuyerID}
	return b.HasQualifyingBid()
}
