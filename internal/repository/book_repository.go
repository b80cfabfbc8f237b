package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-book-exchange/internal/models"
)

const bookColumns = `id, book_name, author, edition, description, conditions, book_cover, semester, department,
       uploader_id, type, status, sell_price, min_bid_price, max_bid, bid_period, bid_end, buyer_id, buyer_status, created_at`

// BookRepository persists listings.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository constructs the repository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// Create inserts an uploaded book. New books start in the library with no offer.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now().UTC()
	}
	book.Type = models.TypeNone
	book.Status = models.StatusLibrary
	const query = `INSERT INTO books
	(book_name, author, edition, description, conditions, book_cover, semester, department, uploader_id, type, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := insertReturningID(ctx, r.db, query,
		book.BookName, book.Author, book.Edition, book.Description, book.Conditions, book.BookCover,
		book.Semester, book.Department, book.UploaderID, book.Type, book.Status, book.CreatedAt)
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	book.ID = id
	return nil
}

// UpdateDetails rewrites the descriptive columns and cover.
func (r *BookRepository) UpdateDetails(ctx context.Context, book *models.Book) error {
	const query = `UPDATE books SET book_name = ?, author = ?, edition = ?, description = ?, conditions = ?,
	book_cover = ?, semester = ?, department = ? WHERE id = ?`
	return r.execOne(ctx, "update book", query,
		book.BookName, book.Author, book.Edition, book.Description, book.Conditions,
		book.BookCover, book.Semester, book.Department, book.ID)
}

// GetByID fetches a book; sql.ErrNoRows when missing.
func (r *BookRepository) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	query := r.db.Rebind(`SELECT ` + bookColumns + ` FROM books WHERE id = ?`)
	var book models.Book
	if err := r.db.GetContext(ctx, &book, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &book, nil
}

// List returns one page of books matching the filter, newest first, plus the total.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	where, args := bookConditions(filter)

	var total int
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM books` + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	size, offset := pageBounds(filter.Page, filter.PageSize)
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM books%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		bookColumns, where, size, offset))
	var books []models.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	return books, total, nil
}

func bookConditions(filter models.BookFilter) (string, []interface{}) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			marks[i] = "?"
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(marks, ",")))
	}
	if filter.UploaderID != "" {
		conditions = append(conditions, "uploader_id = ?")
		args = append(args, filter.UploaderID)
	}
	if filter.Department != "" {
		conditions = append(conditions, "department = ?")
		args = append(args, filter.Department)
	}
	if filter.Semester != "" {
		conditions = append(conditions, "semester = ?")
		args = append(args, filter.Semester)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		conditions = append(conditions, "(LOWER(book_name) LIKE ? OR LOWER(author) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// CompareAndSetStatus moves a book from one status to another. It returns
// sql.ErrNoRows when the book is missing or no longer in the expected status.
func (r *BookRepository) CompareAndSetStatus(ctx context.Context, id int64, from, to models.BookStatus) error {
	return r.execOne(ctx, "update book status", `UPDATE books SET status = ? WHERE id = ? AND status = ?`, to, id, from)
}

// Reject returns a book to the library regardless of its current status.
func (r *BookRepository) Reject(ctx context.Context, id int64) error {
	return r.execOne(ctx, "reject book", `UPDATE books SET status = ? WHERE id = ?`, models.StatusLibrary, id)
}

// SetSellTerms offers the book at a fixed price pending approval.
func (r *BookRepository) SetSellTerms(ctx context.Context, id, price int64) error {
	return r.execOne(ctx, "set sell terms", `UPDATE books SET sell_price = ?, type = ?, status = ? WHERE id = ?`,
		price, models.TypeSale, models.StatusSellPending, id)
}

// CancelSell withdraws a fixed-price offer together with its buy requests.
func (r *BookRepository) CancelSell(ctx context.Context, id int64) error {
	return r.replaceOffer(ctx, "cancel sell", id, `UPDATE books SET sell_price = NULL, type = ?, status = ? WHERE id = ?`,
		models.TypeNone, models.StatusLibrary, id)
}

// SetAuctionTerms opens an auction pending approval. The opening price seeds
// max_bid, any previous bidder is cleared and buy requests from an earlier
// fixed-price offer are dropped.
func (r *BookRepository) SetAuctionTerms(ctx context.Context, id, minBid, period int64, now time.Time) error {
	const query = `UPDATE books SET min_bid_price = ?, max_bid = ?, bid_period = ?, bid_end = ?,
	buyer_id = NULL, buyer_status = NULL, type = ?, status = ? WHERE id = ?`
	return r.replaceOffer(ctx, "set auction terms", id, query,
		minBid, minBid, period, now.Unix()+period, models.TypeAuction, models.StatusAuctionPending, id)
}

// CancelAuction clears every auction field and returns the book to the library.
func (r *BookRepository) CancelAuction(ctx context.Context, id int64) error {
	return revertAuction(ctx, r.db, id)
}

// AcceptBid records a bid only if the auction is still open and nobody else
// raised the price since observed was read. sql.ErrNoRows signals a lost race.
func (r *BookRepository) AcceptBid(ctx context.Context, id, observed, amount int64, bidder string) error {
	const query = `UPDATE books SET max_bid = ?, buyer_id = ?
	WHERE id = ? AND status = ? AND COALESCE(max_bid, min_bid_price) = ?`
	return r.execOne(ctx, "accept bid", query, amount, bidder, id, models.StatusAuctionApproved, observed)
}

// ListExpiredAuctions returns approved auctions whose bid_end has passed.
func (r *BookRepository) ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]models.ExpiredAuction, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.Rebind(fmt.Sprintf(`SELECT id, min_bid_price, max_bid, buyer_id, bid_end FROM books
	WHERE status = ? AND type = ? AND bid_end IS NOT NULL AND bid_end <= ? ORDER BY bid_end LIMIT %d`, limit))
	var rows []models.ExpiredAuction
	if err := r.db.SelectContext(ctx, &rows, query, models.StatusAuctionApproved, models.TypeAuction, now.Unix()); err != nil {
		return nil, fmt.Errorf("list expired auctions: %w", err)
	}
	return rows, nil
}

// replaceOffer applies an offer update and deletes the book's buy requests in
// one transaction.
func (r *BookRepository) replaceOffer(ctx context.Context, op string, id int64, query string, args ...interface{}) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = execOne(ctx, tx, op, query, args...); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM buy_requests WHERE book_id = ?`), id); err != nil {
		return fmt.Errorf("%s clear requests: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", op, err)
	}
	return nil
}

func (r *BookRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	return execOne(ctx, r.db, op, query, args...)
}

func execOne(ctx context.Context, q queryer, op, query string, args ...interface{}) error {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func revertAuction(ctx context.Context, q queryer, id int64) error {
	const query = `UPDATE books SET min_bid_price = NULL, max_bid = NULL, bid_period = NULL, bid_end = NULL,
	buyer_id = NULL, buyer_status = NULL, type = ?, status = ? WHERE id = ?`
	return execOne(ctx, q, "revert auction", query, models.TypeNone, models.StatusLibrary, id)
}
