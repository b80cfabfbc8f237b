package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/internal/repository"
)

func i64(v int64) *int64 { return &v }

func str(v string) *string { return &v }

type requestKey struct {
	book  int64
	buyer string
}

type marketState struct {
	books         map[int64]models.Book
	requests      map[requestKey]models.BuyRequest
	notifications []models.Notification
}

func (s marketState) clone() marketState {
	c := marketState{
		books:         make(map[int64]models.Book, len(s.books)),
		requests:      make(map[requestKey]models.BuyRequest, len(s.requests)),
		notifications: append([]models.Notification(nil), s.notifications...),
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	return c
}

// fakeMarket is an in-memory store behind every service interface. Settlement
// transactions hold the mutex for their whole duration and restore a snapshot
// on failure.
type fakeMarket struct {
	mu     sync.Mutex
	state  marketState
	users  map[string]models.User
	nextID int64

	beforeAcceptBid func()
	failInsertNote  bool
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		state: marketState{books: map[int64]models.Book{}, requests: map[requestKey]models.BuyRequest{}},
		users: map[string]models.User{
			"seller@campus.edu": {Email: "seller@campus.edu", FullName: "Sam Seller"},
			"buyer@campus.edu":  {Email: "buyer@campus.edu", FullName: "Bea Buyer"},
			"other@campus.edu":  {Email: "other@campus.edu", FullName: "Oli Other"},
		},
		nextID: 100,
	}
}

func (f *fakeMarket) put(b models.Book) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.UploaderID == "" {
		b.UploaderID = "seller@campus.edu"
	}
	if b.BookName == "" {
		b.BookName = "Linear Algebra"
	}
	f.state.books[b.ID] = b
}

func (f *fakeMarket) book(id int64) (models.Book, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.state.books[id]
	return b, ok
}

func (f *fakeMarket) notes() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.state.notifications...)
}

func (f *fakeMarket) requestCount(bookID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.state.requests {
		if k.book == bookID {
			n++
		}
	}
	return n
}

func (f *fakeMarket) id() int64 {
	f.nextID++
	return f.nextID
}

// listing store

func (f *fakeMarket) Create(_ context.Context, book *models.Book) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	book.ID = f.id()
	book.Type = models.TypeNone
	book.Status = models.StatusLibrary
	f.state.books[book.ID] = *book
	return nil
}

func (f *fakeMarket) UpdateDetails(_ context.Context, book *models.Book) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.state.books[book.ID]; !ok {
		return sql.ErrNoRows
	}
	f.state.books[book.ID] = *book
	return nil
}

func (f *fakeMarket) GetByID(_ context.Context, id int64) (*models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.state.books[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (f *fakeMarket) List(_ context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Book
	for _, b := range f.state.books {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, b.Status) {
			continue
		}
		if filter.UploaderID != "" && b.UploaderID != filter.UploaderID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func containsStatus(list []models.BookStatus, s models.BookStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f *fakeMarket) update(id int64, fn func(*models.Book) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return updateBook(&f.state, id, fn)
}

func updateBook(state *marketState, id int64, fn func(*models.Book) bool) error {
	b, ok := state.books[id]
	if !ok || !fn(&b) {
		return sql.ErrNoRows
	}
	state.books[id] = b
	return nil
}

func (f *fakeMarket) CompareAndSetStatus(_ context.Context, id int64, from, to models.BookStatus) error {
	return f.update(id, func(b *models.Book) bool {
		if b.Status != from {
			return false
		}
		b.Status = to
		return true
	})
}

func (f *fakeMarket) Reject(_ context.Context, id int64) error {
	return f.update(id, func(b *models.Book) bool { b.Status = models.StatusLibrary; return true })
}

func (f *fakeMarket) SetSellTerms(_ context.Context, id, price int64) error {
	return f.update(id, func(b *models.Book) bool {
		b.SellPrice, b.Type, b.Status = i64(price), models.TypeSale, models.StatusSellPending
		return true
	})
}

func (f *fakeMarket) CancelSell(_ context.Context, id int64) error {
	return f.replaceOffer(id, func(b *models.Book) {
		b.SellPrice, b.Type, b.Status = nil, models.TypeNone, models.StatusLibrary
	})
}

func (f *fakeMarket) SetAuctionTerms(_ context.Context, id, minBid, period int64, now time.Time) error {
	return f.replaceOffer(id, func(b *models.Book) {
		b.MinBidPrice, b.MaxBid, b.BidPeriod, b.BidEnd = i64(minBid), i64(minBid), i64(period), i64(now.Unix()+period)
		b.BuyerID, b.BuyerStatus = nil, nil
		b.Type, b.Status = models.TypeAuction, models.StatusAuctionPending
	})
}

func (f *fakeMarket) replaceOffer(id int64, fn func(*models.Book)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := updateBook(&f.state, id, func(b *models.Book) bool { fn(b); return true }); err != nil {
		return err
	}
	for k := range f.state.requests {
		if k.book == id {
			delete(f.state.requests, k)
		}
	}
	return nil
}

func (f *fakeMarket) CancelAuction(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return revertBook(&f.state, id)
}

func revertBook(state *marketState, id int64) error {
	return updateBook(state, id, func(b *models.Book) bool {
		b.MinBidPrice, b.MaxBid, b.BidPeriod, b.BidEnd, b.BuyerID, b.BuyerStatus = nil, nil, nil, nil, nil, nil
		b.Type, b.Status = models.TypeNone, models.StatusLibrary
		return true
	})
}

func (f *fakeMarket) AcceptBid(_ context.Context, id, observed, amount int64, bidder string) error {
	if hook := f.beforeAcceptBid; hook != nil {
		f.beforeAcceptBid = nil
		hook()
	}
	return f.update(id, func(b *models.Book) bool {
		if b.Status != models.StatusAuctionApproved || b.CurrentBid() != observed {
			return false
		}
		b.MaxBid, b.BuyerID = i64(amount), str(bidder)
		return true
	})
}

func (f *fakeMarket) ListExpiredAuctions(_ context.Context, now time.Time, _ int) ([]models.ExpiredAuction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ExpiredAuction
	for _, b := range f.state.books {
		if b.Status == models.StatusAuctionApproved && b.BidEnd != nil && *b.BidEnd <= now.Unix() {
			out = append(out, models.ExpiredAuction{ID: b.ID, MinBidPrice: b.MinBidPrice, MaxBid: b.MaxBid, BuyerID: b.BuyerID, BidEnd: b.BidEnd})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// users

func (f *fakeMarket) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

// buy requests

type fakeRequests struct{ m *fakeMarket }

func (r fakeRequests) Create(_ context.Context, req *models.BuyRequest) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := requestKey{req.BookID, req.BuyerID}
	if _, ok := r.m.state.requests[key]; ok {
		return repository.ErrDuplicate
	}
	req.ID = r.m.id()
	req.BuyerStatus = models.BuyRequestPending
	r.m.state.requests[key] = *req
	return nil
}

func (r fakeRequests) Find(_ context.Context, bookID int64, buyerID string) (*models.BuyRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	req, ok := r.m.state.requests[requestKey{bookID, buyerID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &req, nil
}

func (r fakeRequests) Delete(_ context.Context, bookID int64, buyerID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := requestKey{bookID, buyerID}
	if _, ok := r.m.state.requests[key]; !ok {
		return sql.ErrNoRows
	}
	delete(r.m.state.requests, key)
	return nil
}

func (r fakeRequests) ListPendingSales(_ context.Context) ([]models.PendingSale, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.PendingSale
	for key, req := range r.m.state.requests {
		b := r.m.state.books[key.book]
		if req.BuyerStatus == models.BuyRequestPending && b.Status == models.StatusSellApproved {
			out = append(out, models.PendingSale{BookID: b.ID, RequestedBuyerID: key.buyer, BuyerStatus: req.BuyerStatus,
				BookName: b.BookName, Type: b.Type, SellPrice: b.SellPrice, SellerEmail: b.UploaderID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookID < out[j].BookID })
	return out, nil
}

// settlements

func (f *fakeMarket) Run(_ context.Context, fn func(repository.SettlementOps) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.state.clone()
	if err := fn(&fakeOps{m: f}); err != nil {
		f.state = snapshot
		return err
	}
	return nil
}

type fakeOps struct{ m *fakeMarket }

func (o *fakeOps) LockBook(_ context.Context, id int64) (*models.Book, error) {
	b, ok := o.m.state.books[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (o *fakeOps) FindUser(ctx context.Context, email string) (*models.User, error) {
	return o.m.FindByEmail(ctx, email)
}

func (o *fakeOps) ApproveBuyRequest(_ context.Context, bookID int64, buyerID string) error {
	key := requestKey{bookID, buyerID}
	req, ok := o.m.state.requests[key]
	if !ok || req.BuyerStatus != models.BuyRequestPending {
		return sql.ErrNoRows
	}
	req.BuyerStatus = models.BuyRequestApproved
	o.m.state.requests[key] = req
	return nil
}

func (o *fakeOps) DeleteCompetingRequests(_ context.Context, bookID int64, keep string) (int64, error) {
	var n int64
	for key := range o.m.state.requests {
		if key.book == bookID && key.buyer != keep {
			delete(o.m.state.requests, key)
			n++
		}
	}
	return n, nil
}

func (o *fakeOps) DeleteRequests(_ context.Context, bookID int64) error {
	for key := range o.m.state.requests {
		if key.book == bookID {
			delete(o.m.state.requests, key)
		}
	}
	return nil
}

func (o *fakeOps) DeleteBook(_ context.Context, id int64) error {
	if _, ok := o.m.state.books[id]; !ok {
		return sql.ErrNoRows
	}
	delete(o.m.state.books, id)
	return nil
}

func (o *fakeOps) MarkAuctionFinalized(_ context.Context, id int64) error {
	return updateBook(&o.m.state, id, func(b *models.Book) bool {
		if b.Status != models.StatusAuctionApproved {
			return false
		}
		b.Status, b.BuyerStatus = models.StatusLibrary, str(models.BuyerStatusPending)
		return true
	})
}

func (o *fakeOps) RevertAuction(_ context.Context, id int64) error {
	return revertBook(&o.m.state, id)
}

func (o *fakeOps) InsertNotification(_ context.Context, email, message string, at time.Time) (*models.Notification, error) {
	if o.m.failInsertNote {
		return nil, errors.New("disk full")
	}
	n := models.Notification{ID: o.m.id(), UserEmail: email, Message: message, GeneratedAt: at}
	o.m.state.notifications = append(o.m.state.notifications, n)
	return &n, nil
}
