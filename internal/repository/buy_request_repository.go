package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-book-exchange/internal/models"
)

// BuyRequestRepository persists fixed-price purchase requests.
type BuyRequestRepository struct {
	db *sqlx.DB
}

// NewBuyRequestRepository constructs the repository.
func NewBuyRequestRepository(db *sqlx.DB) *BuyRequestRepository {
	return &BuyRequestRepository{db: db}
}

// Create inserts a pending request. ErrDuplicate when the buyer already asked.
func (r *BuyRequestRepository) Create(ctx context.Context, req *models.BuyRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.BuyerStatus = models.BuyRequestPending
	const query = `INSERT INTO buy_requests (book_id, buyer_id, buyer_status, created_at) VALUES (?, ?, ?, ?)`
	id, err := insertReturningID(ctx, r.db, query, req.BookID, req.BuyerID, req.BuyerStatus, req.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create buy request: %w", err)
	}
	req.ID = id
	return nil
}

// Find returns the request for (book, buyer); sql.ErrNoRows when absent.
func (r *BuyRequestRepository) Find(ctx context.Context, bookID int64, buyerID string) (*models.BuyRequest, error) {
	query := r.db.Rebind(`SELECT id, book_id, buyer_id, buyer_status, created_at FROM buy_requests WHERE book_id = ? AND buyer_id = ?`)
	var req models.BuyRequest
	if err := r.db.GetContext(ctx, &req, query, bookID, buyerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find buy request: %w", err)
	}
	return &req, nil
}

// Delete removes the request for (book, buyer); sql.ErrNoRows when absent.
func (r *BuyRequestRepository) Delete(ctx context.Context, bookID int64, buyerID string) error {
	return execOne(ctx, r.db, "delete buy request", `DELETE FROM buy_requests WHERE book_id = ? AND buyer_id = ?`, bookID, buyerID)
}

const pendingSalesQuery = `SELECT br.book_id, br.buyer_id AS requested_buyer_id, br.buyer_status,
       b.book_name, b.author, b.edition, b.book_cover, b.type, b.sell_price,
       NULL AS min_bid_price, NULL AS max_bid,
       u.full_name AS buyer_name, s.full_name AS seller_name, b.uploader_id AS seller_email
FROM buy_requests br
JOIN books b ON br.book_id = b.id
LEFT JOIN users u ON br.buyer_id = u.email
LEFT JOIN users s ON b.uploader_id = s.email
WHERE br.buyer_status = ? AND b.type = ? AND b.status = ?
UNION ALL
SELECT b.id AS book_id, b.buyer_id AS requested_buyer_id, b.buyer_status,
       b.book_name, b.author, b.edition, b.book_cover, b.type, NULL AS sell_price,
       b.min_bid_price, b.max_bid,
       u.full_name AS buyer_name, s.full_name AS seller_name, b.uploader_id AS seller_email
FROM books b
LEFT JOIN users u ON b.buyer_id = u.email
LEFT JOIN users s ON b.uploader_id = s.email
WHERE b.type = ? AND b.status = ? AND b.buyer_status = ? AND b.buyer_id IS NOT NULL
ORDER BY book_id`

// ListPendingSales returns the admin settlement queue: pending buy requests on
// approved sales followed by finalized auctions awaiting approval.
func (r *BuyRequestRepository) ListPendingSales(ctx context.Context) ([]models.PendingSale, error) {
	var rows []models.PendingSale
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(pendingSalesQuery),
		models.BuyRequestPending, models.TypeSale, models.StatusSellApproved,
		models.TypeAuction, models.StatusLibrary, models.BuyerStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending sales: %w", err)
	}
	return rows, nil
}
