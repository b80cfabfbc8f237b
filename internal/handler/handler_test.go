package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-book-exchange/internal/dto"
	"github.com/noah-isme/campus-book-exchange/internal/middleware"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/internal/service"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
)

var (
	userClaims  = &models.JWTClaims{Email: "buyer@campus.edu", FullName: "Bea Buyer", Role: models.RoleUser}
	adminClaims = &models.JWTClaims{Email: "admin@campus.edu", FullName: "Ada Admin", Role: models.RoleAdmin}
)

func newGinContext(method, path string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Meta    map[string]any  `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type listingMock struct {
	approveErr error
	actor      models.Actor
	sellReq    dto.SellTermsRequest
	cover      string
	input      dto.BookInput
	hit        bool
}

func (m *listingMock) Approve(_ context.Context, id int64) (*models.Book, error) {
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	return &models.Book{ID: id, Status: models.StatusSellApproved}, nil
}
func (m *listingMock) Reject(context.Context, int64) error { return nil }
func (m *listingMock) SetSellTerms(_ context.Context, actor models.Actor, _ int64, req dto.SellTermsRequest) error {
	m.actor, m.sellReq = actor, req
	return nil
}
func (m *listingMock) CancelSell(context.Context, models.Actor, int64) error { return nil }
func (m *listingMock) SetAuctionTerms(context.Context, models.Actor, int64, dto.AuctionTermsRequest) error {
	return nil
}
func (m *listingMock) CancelAuction(_ context.Context, _ models.Actor, _ int64) error {
	return appErrors.Clone(appErrors.ErrNotFound, "book not found")
}
func (m *listingMock) Create(_ context.Context, actor models.Actor, input dto.BookInput, cover *service.Upload) (*models.Book, error) {
	m.actor, m.input = actor, input
	if cover != nil {
		m.cover = cover.Name
	}
	return &models.Book{ID: 7, BookName: input.BookName, UploaderID: actor.Email}, nil
}
func (m *listingMock) Update(context.Context, models.Actor, int64, dto.BookInput, *service.Upload) (*models.Book, error) {
	return &models.Book{}, nil
}
func (m *listingMock) Get(_ context.Context, id int64) (*models.Book, error) {
	return &models.Book{ID: id}, nil
}
func (m *listingMock) Marketplace(_ context.Context, q dto.BookListQuery) (*dto.BookListResult, bool, error) {
	return &dto.BookListResult{Books: []models.Book{{ID: 1}}, Pagination: models.Pagination{Page: q.Page, PageSize: q.PageSize, TotalCount: 1}}, m.hit, nil
}
func (m *listingMock) MyBooks(context.Context, string) ([]models.Book, error) { return nil, nil }
func (m *listingMock) PendingApproval(context.Context) ([]models.Book, error) {
	return []models.Book{}, nil
}

func TestBookHandlerApprove(t *testing.T) {
	h := NewBookHandler(&listingMock{}, 0)
	c, w := newGinContext(http.MethodPost, "/admin/books/3/approve", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Book approved successfully", decode(t, w).Message)

	h = NewBookHandler(&listingMock{approveErr: appErrors.Clone(appErrors.ErrInvalidState, "book is library, not pending approval")}, 0)
	c, w = newGinContext(http.MethodPost, "/admin/books/3/approve", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.Approve(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATE", decode(t, w).Code)

	c, w = newGinContext(http.MethodPost, "/admin/books/x/approve", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	h.Approve(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Code)
}

func TestBookHandlerSellTermsPassesActor(t *testing.T) {
	mock := &listingMock{}
	h := NewBookHandler(mock, 0)
	c, w := newGinContext(http.MethodPost, "/books/3/sell", []byte(`{"sell_price":450}`), userClaims)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.SetSellTerms(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(450), mock.sellReq.SellPrice)
	assert.Equal(t, models.Actor{Email: userClaims.Email, FullName: userClaims.FullName}, mock.actor)

	c, w = newGinContext(http.MethodPost, "/books/3/auction/cancel", nil, userClaims)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.CancelAuction(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookHandlerMarketplaceReportsCacheHit(t *testing.T) {
	h := NewBookHandler(&listingMock{hit: true}, 0)
	c, w := newGinContext(http.MethodGet, "/books?page=2&page_size=5&q=algebra", nil, nil)
	h.Marketplace(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, true, decode(t, w).Meta["cache_hit"])
	assert.Contains(t, w.Body.String(), `"page_size":5`)
}

func TestBookHandlerCreateMultipart(t *testing.T) {
	mock := &listingMock{}
	h := NewBookHandler(mock, 1024)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("book_name", "Thermodynamics"))
	require.NoError(t, mw.WriteField("author", "Cengel"))
	part, err := mw.CreateFormFile("book_cover", "cover.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, mw.Close())

	c, w := newGinContext(http.MethodPost, "/books", nil, userClaims)
	c.Request = httptest.NewRequest(http.MethodPost, "/books", body)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "cover.jpg", mock.cover)
	assert.Equal(t, "Thermodynamics", mock.input.BookName)
	assert.Equal(t, userClaims.Email, mock.actor.Email)
}

func TestBookHandlerCreateRequiresCover(t *testing.T) {
	h := NewBookHandler(&listingMock{}, 0)
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("book_name", "Thermodynamics"))
	require.NoError(t, mw.Close())

	c, w := newGinContext(http.MethodPost, "/books", nil, userClaims)
	c.Request = httptest.NewRequest(http.MethodPost, "/books", body)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "book_cover is required", decode(t, w).Error)
}

type ledgerMock struct {
	bidReq  dto.PlaceBidRequest
	bidErr  error
	status  *models.BuyStatus
	queried string
}

func (m *ledgerMock) PlaceBid(_ context.Context, actor models.Actor, id int64, req dto.PlaceBidRequest) (*dto.BidResult, error) {
	m.bidReq = req
	if m.bidErr != nil {
		return nil, m.bidErr
	}
	return &dto.BidResult{BookID: id, MaxBid: req.BidPrice, BuyerID: actor.Email}, nil
}
func (m *ledgerMock) RequestBuy(context.Context, models.Actor, int64, dto.BuyRequestPayload) (*models.BuyRequest, error) {
	return nil, appErrors.Clone(appErrors.ErrAlreadyRequested, "you have already requested this book")
}
func (m *ledgerMock) CancelBuy(context.Context, models.Actor, int64, dto.BuyRequestPayload) error {
	return nil
}
func (m *ledgerMock) BuyStatus(_ context.Context, _ models.Actor, id int64, email string) (*models.BuyStatus, error) {
	m.queried = email
	return &models.BuyStatus{BookID: id, BuyerID: email}, nil
}

func TestLedgerHandlerPlaceBid(t *testing.T) {
	mock := &ledgerMock{}
	h := NewLedgerHandler(mock)
	c, w := newGinContext(http.MethodPost, "/books/4/bids", []byte(`{"bid_price":220}`), userClaims)
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	h.PlaceBid(c)
	require.Equal(t, http.StatusOK, w.Code)
	var result dto.BidResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, int64(220), result.MaxBid)

	mock.bidErr = appErrors.Clone(appErrors.ErrInvalidBid, "bid must be at least 240")
	c, w = newGinContext(http.MethodPost, "/books/4/bids", []byte(`{"bid_price":230}`), userClaims)
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	h.PlaceBid(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, "INVALID_BID", env.Code)
	assert.Equal(t, "bid must be at least 240", env.Error)

	mock.bidErr = appErrors.Clone(appErrors.ErrConflict, "")
	c, w = newGinContext(http.MethodPost, "/books/4/bids", []byte(`{"bid_price":240}`), userClaims)
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	h.PlaceBid(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	c, w = newGinContext(http.MethodPost, "/books/4/bids", []byte(`{"bid_price":`), userClaims)
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	h.PlaceBid(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLedgerHandlerBuyRequests(t *testing.T) {
	mock := &ledgerMock{}
	h := NewLedgerHandler(mock)

	c, w := newGinContext(http.MethodPost, "/books/4/buy-requests", nil, userClaims)
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	h.RequestBuy(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ALREADY_REQUESTED", decode(t, w).Code)

	c, w = newGinContext(http.MethodGet, "/books/4/buy-requests/status?buyer_email=buyer@campus.edu", nil, userClaims)
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	h.BuyStatus(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "buyer@campus.edu", mock.queried)
	assert.Contains(t, w.Body.String(), `"buyer_status":null`)

	c, w = newGinContext(http.MethodDelete, "/books/4/buy-requests", []byte(`{}`), userClaims)
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	h.CancelBuy(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

type settlementMock struct {
	req    dto.SettlementRequest
	actor  models.Actor
	format string
}

func (m *settlementMock) ApproveSale(_ context.Context, req dto.SettlementRequest) (*service.SettlementResult, error) {
	m.req = req
	return &service.SettlementResult{BookID: req.BookID, Kind: service.SettlementApproveSale}, nil
}
func (m *settlementMock) FinalizeAuction(_ context.Context, actor models.Actor, id int64) (*service.SettlementResult, error) {
	m.actor = actor
	return nil, appErrors.Clone(appErrors.ErrInvalidBid, "no valid bid received")
}
func (m *settlementMock) ApproveAuctionSale(_ context.Context, actor models.Actor, req dto.SettlementRequest) (*service.SettlementResult, error) {
	m.actor, m.req = actor, req
	return &service.SettlementResult{BookID: req.BookID}, nil
}
func (m *settlementMock) AuctionFailed(context.Context, models.Actor, int64) (*service.SettlementResult, error) {
	return &service.SettlementResult{}, nil
}
func (m *settlementMock) RemoveBook(context.Context, models.Actor, int64) error { return nil }
func (m *settlementMock) PendingSales(context.Context) ([]models.PendingSale, error) {
	return []models.PendingSale{{BookID: 1}}, nil
}
func (m *settlementMock) PendingSalesExport(_ context.Context, format string) (*service.ExportFile, error) {
	m.format = format
	return &service.ExportFile{Name: "pending_sales.csv", ContentType: "text/csv", Data: []byte("a,b\n")}, nil
}

func TestSettlementHandlerApproveSale(t *testing.T) {
	mock := &settlementMock{}
	h := NewSettlementHandler(mock, mock)
	c, w := newGinContext(http.MethodPost, "/admin/sales/approve", []byte(`{"book_id":9,"buyer_id":"buyer@campus.edu"}`), adminClaims)
	h.ApproveSale(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.SettlementRequest{BookID: 9, BuyerID: "buyer@campus.edu"}, mock.req)

	c, w = newGinContext(http.MethodPost, "/admin/auctions/approve", []byte(`{"book_id":9,"buyer_id":"buyer@campus.edu"}`), adminClaims)
	h.ApproveAuctionSale(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada Admin", mock.actor.FullName)
	assert.True(t, mock.actor.Admin)
}

func TestSettlementHandlerFinalizeWithoutBid(t *testing.T) {
	mock := &settlementMock{}
	h := NewSettlementHandler(mock, mock)
	c, w := newGinContext(http.MethodPost, "/books/9/auction/finalize", nil, userClaims)
	c.Params = gin.Params{{Key: "id", Value: "9"}}
	h.FinalizeAuction(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_BID", decode(t, w).Code)
}

func TestSettlementHandlerPendingSalesExport(t *testing.T) {
	mock := &settlementMock{}
	h := NewSettlementHandler(mock, mock)

	c, w := newGinContext(http.MethodGet, "/admin/sales/pending?format=csv", nil, adminClaims)
	h.PendingSales(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mock.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "pending_sales.csv")

	c, w = newGinContext(http.MethodGet, "/admin/sales/pending", nil, adminClaims)
	h.PendingSales(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"book_id":1`)
}

type notificationMock struct{ email string }

func (m *notificationMock) List(_ context.Context, email string) ([]models.Notification, error) {
	m.email = email
	return []models.Notification{{ID: 1, UserEmail: email, Message: "hello"}}, nil
}
func (m *notificationMock) Delete(context.Context, int64, string) error {
	return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
}

func TestNotificationHandler(t *testing.T) {
	mock := &notificationMock{}
	h := NewNotificationHandler(mock)
	c, w := newGinContext(http.MethodGet, "/notifications", nil, userClaims)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userClaims.Email, mock.email)

	c, w = newGinContext(http.MethodDelete, "/notifications/5", nil, userClaims)
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	h.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type materialMock struct{ path string }

func (m *materialMock) Upload(context.Context, models.Actor, dto.StudyMaterialInput, *service.Upload) (*models.StudyMaterial, error) {
	return &models.StudyMaterial{ID: 1}, nil
}
func (m *materialMock) Pending(context.Context) ([]models.StudyMaterial, error)  { return nil, nil }
func (m *materialMock) Approved(context.Context) ([]models.StudyMaterial, error) { return nil, nil }
func (m *materialMock) Approve(context.Context, int64) error                     { return nil }
func (m *materialMock) Reject(context.Context, int64) error {
	return appErrors.Clone(appErrors.ErrNotFound, "study material not found")
}
func (m *materialMock) Open(context.Context, models.Actor, int64) (*models.StudyMaterial, *os.File, error) {
	f, err := os.Open(m.path)
	if err != nil {
		return nil, nil, err
	}
	return &models.StudyMaterial{ID: 1, FileName: "notes.pdf"}, f, nil
}

func TestStudyMaterialHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stored.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-notes"), 0o644))
	h := NewStudyMaterialHandler(&materialMock{path: path}, 0)

	c, w := newGinContext(http.MethodGet, "/study-materials/1/download", nil, userClaims)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-notes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "notes.pdf")

	c, w = newGinContext(http.MethodPost, "/admin/study-materials/1/reject", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Reject(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return nil }),
	})
	c, w := newGinContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	c, w = newGinContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerPrometheusWithoutRegistry(t *testing.T) {
	h := NewMetricsHandler(nil, nil)
	c, w := newGinContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.True(t, c.IsAborted())

	h = NewMetricsHandler(service.NewMetricsService(), nil)
	c, w = newGinContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cache_latency_seconds")
}
