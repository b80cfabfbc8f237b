package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-book-exchange/internal/models"
)

// SettlementOps are the statements available inside a settlement transaction.
type SettlementOps interface {
	LockBook(ctx context.Context, id int64) (*models.Book, error)
	FindUser(ctx context.Context, email string) (*models.User, error)
	ApproveBuyRequest(ctx context.Context, bookID int64, buyerID string) error
	DeleteCompetingRequests(ctx context.Context, bookID int64, keepBuyerID string) (int64, error)
	DeleteRequests(ctx context.Context, bookID int64) error
	DeleteBook(ctx context.Context, id int64) error
	MarkAuctionFinalized(ctx context.Context, id int64) error
	RevertAuction(ctx context.Context, id int64) error
	InsertNotification(ctx context.Context, email, message string, at time.Time) (*models.Notification, error)
}

// SettlementRepository runs settlements as single transactions.
type SettlementRepository struct {
	db *sqlx.DB
}

// NewSettlementRepository constructs the repository.
func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Run opens a transaction, hands it to fn and commits when fn succeeds. Any
// error or panic rolls everything back.
func (r *SettlementRepository) Run(ctx context.Context, fn func(SettlementOps) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&settlementTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

type settlementTx struct {
	tx *sqlx.Tx
}

func (s *settlementTx) LockBook(ctx context.Context, id int64) (*models.Book, error) {
	var book models.Book
	query := s.tx.Rebind(`SELECT ` + bookColumns + ` FROM books WHERE id = ? FOR UPDATE`)
	if err := s.tx.GetContext(ctx, &book, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}
	return &book, nil
}

func (s *settlementTx) FindUser(ctx context.Context, email string) (*models.User, error) {
	return findUser(ctx, s.tx, email)
}

func (s *settlementTx) ApproveBuyRequest(ctx context.Context, bookID int64, buyerID string) error {
	return execOne(ctx, s.tx, "approve buy request",
		`UPDATE buy_requests SET buyer_status = ? WHERE book_id = ? AND buyer_id = ? AND buyer_status = ?`,
		models.BuyRequestApproved, bookID, buyerID, models.BuyRequestPending)
}

func (s *settlementTx) DeleteCompetingRequests(ctx context.Context, bookID int64, keepBuyerID string) (int64, error) {
	res, err := s.tx.ExecContext(ctx, s.tx.Rebind(`DELETE FROM buy_requests WHERE book_id = ? AND buyer_id <> ?`), bookID, keepBuyerID)
	if err != nil {
		return 0, fmt.Errorf("delete competing requests: %w", err)
	}
	return res.RowsAffected()
}

func (s *settlementTx) DeleteRequests(ctx context.Context, bookID int64) error {
	if _, err := s.tx.ExecContext(ctx, s.tx.Rebind(`DELETE FROM buy_requests WHERE book_id = ?`), bookID); err != nil {
		return fmt.Errorf("delete buy requests: %w", err)
	}
	return nil
}

func (s *settlementTx) DeleteBook(ctx context.Context, id int64) error {
	return execOne(ctx, s.tx, "delete book", `DELETE FROM books WHERE id = ?`, id)
}

func (s *settlementTx) MarkAuctionFinalized(ctx context.Context, id int64) error {
	return execOne(ctx, s.tx, "finalize auction",
		`UPDATE books SET status = ?, buyer_status = ? WHERE id = ? AND status = ?`,
		models.StatusLibrary, models.BuyerStatusPending, id, models.StatusAuctionApproved)
}

func (s *settlementTx) RevertAuction(ctx context.Context, id int64) error {
	return revertAuction(ctx, s.tx, id)
}

func (s *settlementTx) InsertNotification(ctx context.Context, email, message string, at time.Time) (*models.Notification, error) {
	id, err := insertReturningID(ctx, s.tx,
		`INSERT INTO user_notification (user_email, notification, notification_generated_time) VALUES (?, ?, ?)`,
		email, message, at)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &models.Notification{ID: id, UserEmail: email, Message: message, GeneratedAt: at}, nil
}
