package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-book-exchange/internal/handler"
	"github.com/noah-isme/campus-book-exchange/internal/middleware"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/pkg/config"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

type routeDeps struct {
	tokens        tokenValidator
	limiter       middleware.Limiter
	logger        *zap.Logger
	metrics       *handler.MetricsHandler
	books         *handler.BookHandler
	ledger        *handler.LedgerHandler
	settlements   *handler.SettlementHandler
	notifications *handler.NotificationHandler
	materials     *handler.StudyMaterialHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, d routeDeps) {
	r.GET("/health", d.metrics.Health)
	r.GET("/ready", d.metrics.Ready)
	r.GET("/metrics", d.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.GET("/books", d.books.Marketplace)
	api.GET("/books/:id", d.books.Get)
	api.GET("/study-materials", d.materials.Approved)

	auth := api.Group("")
	auth.Use(middleware.JWT(d.tokens))

	auth.POST("/books", d.books.Create)
	auth.PUT("/books/:id", d.books.Update)
	auth.DELETE("/books/:id", d.settlements.RemoveBook)
	auth.POST("/books/:id/sell", d.books.SetSellTerms)
	auth.POST("/books/:id/sell/cancel", d.books.CancelSell)
	auth.POST("/books/:id/auction", d.books.SetAuctionTerms)
	auth.POST("/books/:id/auction/cancel", d.books.CancelAuction)
	auth.POST("/books/:id/auction/finalize", d.settlements.FinalizeAuction)
	auth.POST("/books/:id/auction/failed", d.settlements.AuctionFailed)
	auth.POST("/books/:id/bids", middleware.RateLimit(d.limiter, cfg.RateLimit, d.logger), d.ledger.PlaceBid)
	auth.POST("/books/:id/buy-requests", d.ledger.RequestBuy)
	auth.DELETE("/books/:id/buy-requests", d.ledger.CancelBuy)
	auth.GET("/books/:id/buy-requests/status", d.ledger.BuyStatus)
	auth.GET("/users/me/books", d.books.MyBooks)

	auth.GET("/notifications", d.notifications.List)
	auth.DELETE("/notifications/:id", d.notifications.Delete)

	auth.POST("/study-materials", d.materials.Upload)
	auth.GET("/study-materials/:id/download", d.materials.Download)

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/books/pending", d.books.PendingApproval)
	admin.POST("/books/:id/approve", d.books.Approve)
	admin.POST("/books/:id/reject", d.books.Reject)
	admin.GET("/sales/pending", d.settlements.PendingSales)
	admin.POST("/sales/approve", d.settlements.ApproveSale)
	admin.POST("/auctions/approve", d.settlements.ApproveAuctionSale)
	admin.GET("/study-materials/pending", d.materials.Pending)
	admin.POST("/study-materials/:id/approve", d.materials.Approve)
	admin.POST("/study-materials/:id/reject", d.materials.Reject)
}
