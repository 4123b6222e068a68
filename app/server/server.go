// Package server assembles the HTTP API from its components.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MrMohammed1/miran-search/app/api"
	"github.com/MrMohammed1/miran-search/app/auth"
	"github.com/MrMohammed1/miran-search/app/cache"
	"github.com/MrMohammed1/miran-search/app/catalog"
	"github.com/MrMohammed1/miran-search/app/categories"
	"github.com/MrMohammed1/miran-search/app/config"
	"github.com/MrMohammed1/miran-search/app/logging"
	"github.com/MrMohammed1/miran-search/app/metrics"
	"github.com/MrMohammed1/miran-search/app/search"
	"github.com/MrMohammed1/miran-search/models"
)

type Handlers struct {
	Products   *catalog.CatalogHandler
	Categories *categories.CategoryHandler
	Auth       *auth.Handler
}

type Options struct {
	Capabilities   api.Capabilities
	AllowedOrigins []string
	Metrics        *metrics.Collector
	Logger         *zap.Logger
	// Health reports whether the service can reach its dependencies.
	Health func(ctx context.Context) error
}

// New wires repositories, the search planner, the cache layer and the
// handlers for cfg and returns the routed API.
func New(cfg *config.Config, db *gorm.DB, backend cache.Backend, logger *zap.Logger, collector *metrics.Collector) http.Handler {
	logger = logging.OrNop(logger)
	caps := api.DefaultCapabilities()
	paginator := api.Paginator{DefaultSize: cfg.HTTP.DefaultPageSize, MaxSize: cfg.HTTP.MaxPageSize}
	validator := api.NewValidator()
	layer := cache.NewLayer(backend, cfg.Cache.TTL, logger.Named("cache"), collector)

	productsRepo := models.NewProductsRepository(db)
	categoriesRepo := models.NewCategoriesRepository(db)
	planner := search.NewPlanner(productsRepo, search.Config{
		Weights: models.SearchWeights{
			Name:        cfg.Search.NameWeight,
			Brand:       cfg.Search.BrandWeight,
			Description: cfg.Search.DescriptionWeight,
			Category:    cfg.Search.CategoryWeight,
		},
		RankThreshold:    cfg.Search.RankThreshold,
		ShortQueryMaxLen: cfg.Search.ShortQueryMaxLen,
	}, logger.Named("search"), collector)

	tokens := auth.NewService(models.NewUsersRepository(db), auth.Config{
		Secret:     []byte(cfg.Auth.JWTSecret),
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
		Issuer:     cfg.Auth.Issuer,
	})

	handlers := Handlers{
		Products: catalog.NewCatalogHandler(productsRepo, categoriesRepo, planner, layer, validator,
			catalog.Config{Paginator: paginator, Capabilities: caps}, logger),
		Categories: categories.NewCategoryHandler(categoriesRepo, layer, validator, paginator, logger),
		Auth:       auth.NewHandler(tokens, validator, logger),
	}

	return NewRouter(handlers, Options{
		Capabilities:   caps,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Metrics:        collector,
		Logger:         logger,
		Health: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})
}

func NewRouter(h Handlers, opts Options) http.Handler {
	if opts.Capabilities == nil {
		opts.Capabilities = api.DefaultCapabilities()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector("miran")
	}
	logger := logging.OrNop(opts.Logger)
	caps := opts.Capabilities
	authn := h.Auth.Authenticate

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(api.Metrics(opts.Metrics))
	r.Use(api.ServerTiming)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Server-Timing"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				api.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	r.Post("/api/token/", h.Auth.HandleObtain)
	r.Post("/api/token/refresh/", h.Auth.HandleRefresh)

	r.Route("/api/products", func(r chi.Router) {
		r.Method(http.MethodGet, "/", caps.Guard(api.ProductList, authn, h.Products.HandleGet))
		r.Method(http.MethodPost, "/", caps.Guard(api.ProductCreate, authn, h.Products.HandleCreate))
		r.Method(http.MethodGet, "/search/", caps.Guard(api.ProductSearch, authn, h.Products.HandleSearch))
		r.Method(http.MethodGet, "/{id}/", caps.Guard(api.ProductRetrieve, authn, h.Products.HandleGetProduct))
		r.Method(http.MethodPut, "/{id}/", caps.Guard(api.ProductUpdate, authn, h.Products.HandleUpdate))
		r.Method(http.MethodPatch, "/{id}/", caps.Guard(api.ProductPartialUpdate, authn, h.Products.HandlePatch))
		r.Method(http.MethodDelete, "/{id}/", caps.Guard(api.ProductDelete, authn, h.Products.HandleDelete))
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Method(http.MethodGet, "/", caps.Guard(api.CategoryList, authn, h.Categories.HandleGetAll))
		r.Method(http.MethodPost, "/", caps.Guard(api.CategoryCreate, authn, h.Categories.HandleCreate))
		r.Method(http.MethodGet, "/{id}/", caps.Guard(api.CategoryRetrieve, authn, h.Categories.HandleGet))
		r.Method(http.MethodPut, "/{id}/", caps.Guard(api.CategoryUpdate, authn, h.Categories.HandleUpdate))
		r.Method(http.MethodPatch, "/{id}/", caps.Guard(api.CategoryPartialUpdate, authn, h.Categories.HandlePatch))
		r.Method(http.MethodDelete, "/{id}/", caps.Guard(api.CategoryDelete, authn, h.Categories.HandleDelete))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.NotFound(w)
	})
	return r
}
