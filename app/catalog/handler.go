package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrMohammed1/miran-search/app/api"
	"github.com/MrMohammed1/miran-search/app/cache"
	"github.com/MrMohammed1/miran-search/app/logging"
	"github.com/MrMohammed1/miran-search/app/search"
	"github.com/MrMohammed1/miran-search/models"
)

type Category struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Product struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	Calories    int       `json:"calories"`
	Protein     string    `json:"protein"`
	Carbs       string    `json:"carbs"`
	Fats        string    `json:"fats"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SearchResult is a Product with its similarity rank. Rank is null for
// short queries, which are matched by substring only.
type SearchResult struct {
	Product
	Rank *float64 `json:"rank"`
}

// ProductInput is the write representation. Category is a category name;
// an unknown name creates the category.
type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Brand       string          `json:"brand" validate:"required,max=100"`
	Category    string          `json:"category" validate:"required,max=100"`
	Description string          `json:"description"`
	Calories    int             `json:"calories" validate:"gte=0"`
	Protein     decimal.Decimal `json:"protein" validate:"macro"`
	Carbs       decimal.Decimal `json:"carbs" validate:"macro"`
	Fats        decimal.Decimal `json:"fats" validate:"macro"`
}

type ProductProvider interface {
	GetProducts(ctx context.Context, offset, limit int) ([]models.Product, int64, error)
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	SaveProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

type CategoryResolver interface {
	UpsertByName(ctx context.Context, name string) (*models.Category, error)
}

type Searcher interface {
	Search(ctx context.Context, params search.Params, offset, limit int) ([]models.SearchHit, int64, error)
}

type Config struct {
	Paginator    api.Paginator
	Capabilities api.Capabilities
}

type CatalogHandler struct {
	repo       ProductProvider
	categories CategoryResolver
	searcher   Searcher
	cache      *cache.Layer
	validator  *api.Validator
	paginator  api.Paginator
	caps       api.Capabilities
	logger     *zap.Logger
}

func NewCatalogHandler(r ProductProvider, categories CategoryResolver, searcher Searcher, layer *cache.Layer, v *api.Validator, cfg Config, logger *zap.Logger) *CatalogHandler {
	if cfg.Paginator.DefaultSize == 0 {
		cfg.Paginator = api.DefaultPaginator()
	}
	if cfg.Capabilities == nil {
		cfg.Capabilities = api.DefaultCapabilities()
	}
	return &CatalogHandler{
		repo:       r,
		categories: categories,
		searcher:   searcher,
		cache:      layer,
		validator:  v,
		paginator:  cfg.Paginator,
		caps:       cfg.Capabilities,
		logger:     logging.OrNop(logger),
	}
}

// HandleGet serves GET /api/products/. Pages of the default size are cached.
func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	pr, err := h.paginator.Parse(r)
	if err != nil {
		api.Error(w, http.StatusNotFound, "Invalid page.")
		return
	}

	compute := func(ctx context.Context) (api.Page[Product], error) {
		res, total, err := h.repo.GetProducts(ctx, pr.Offset(), pr.Size)
		if err != nil {
			return api.Page[Product]{}, err
		}
		products := make([]Product, len(res))
		for i := range res {
			products[i] = toProduct(&res[i])
		}
		return api.NewPage(r, pr, total, products)
	}

	var page api.Page[Product]
	if h.paginator.IsDefaultSize(pr) {
		page, err = cache.Fetch(r.Context(), h.cache, cache.ProductListKey(pr.Number), compute)
	} else {
		page, err = compute(r.Context())
	}
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	api.JSON(w, http.StatusOK, page)
}

// HandleGetProduct serves GET /api/products/{id}/.
func (h *CatalogHandler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.NotFound(w)
		return
	}

	product, err := cache.Fetch(r.Context(), h.cache, cache.ProductKey(id), func(ctx context.Context) (Product, error) {
		p, err := h.repo.GetByID(ctx, id)
		if err != nil {
			return Product{}, err
		}
		return toProduct(p), nil
	})
	if err != nil {
		h.fail(w, "retrieve product", err)
		return
	}
	api.JSON(w, http.StatusOK, product)
}

// HandleSearch serves GET /api/products/search/.
func (h *CatalogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := search.Params{
		Query:       strings.TrimSpace(query.Get("q")),
		Category:    strings.TrimSpace(query.Get("category")),
		CaloriesMin: strings.TrimSpace(query.Get("calories_min")),
		CaloriesMax: strings.TrimSpace(query.Get("calories_max")),
	}
	if params.Query == "" {
		api.JSON(w, http.StatusOK, api.EmptyPage[SearchResult]())
		return
	}

	pr, err := h.paginator.Parse(r)
	if err != nil {
		api.Error(w, http.StatusNotFound, "Invalid page.")
		return
	}

	stop := api.StartTiming(r.Context(), "search")
	key := cache.SearchKey(params.Query, params.Category, params.CaloriesMin, params.CaloriesMax,
		strconv.Itoa(pr.Number), strconv.Itoa(pr.Size))
	shape := h.caps.Lookup(api.ProductSearch).Shape
	page, err := cache.FetchSearch(r.Context(), h.cache, key, func(ctx context.Context) (api.Page[SearchResult], error) {
		hits, total, err := h.searcher.Search(ctx, params, pr.Offset(), pr.Size)
		if err != nil {
			return api.Page[SearchResult]{}, err
		}
		results := make([]SearchResult, len(hits))
		for i := range hits {
			results[i] = toSearchResult(&hits[i], shape)
		}
		return api.NewPage(r, pr, total, results)
	})
	stop()
	if err != nil {
		h.fail(w, "search products", err)
		return
	}
	api.JSON(w, http.StatusOK, page)
}

// HandleCreate serves POST /api/products/.
func (h *CatalogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if !h.validator.Bind(w, r, &input) {
		return
	}

	category, err := h.categories.UpsertByName(r.Context(), strings.TrimSpace(input.Category))
	if err != nil {
		h.fail(w, "resolve category", err)
		return
	}

	product := &models.Product{Category: *category}
	input.apply(product)
	if err := h.repo.CreateProduct(r.Context(), product); err != nil {
		h.fail(w, "create product", err)
		return
	}
	h.cache.InvalidateProduct(r.Context(), product.ID)

	api.JSON(w, http.StatusCreated, toProduct(product))
}

// HandleUpdate serves PUT /api/products/{id}/.
func (h *CatalogHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePatch serves PATCH /api/products/{id}/. Absent fields keep their
// current values.
func (h *CatalogHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *CatalogHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	id, ok := pathID(r)
	if !ok {
		api.NotFound(w)
		return
	}
	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, "load product", err)
		return
	}

	var input ProductInput
	if partial {
		input = inputFrom(product)
	}
	if !h.validator.Bind(w, r, &input) {
		return
	}

	if name := strings.TrimSpace(input.Category); name != product.Category.Name {
		category, err := h.categories.UpsertByName(r.Context(), name)
		if err != nil {
			h.fail(w, "resolve category", err)
			return
		}
		product.Category = *category
		product.CategoryID = category.ID
	}
	input.apply(product)

	if err := h.repo.SaveProduct(r.Context(), product); err != nil {
		h.fail(w, "update product", err)
		return
	}
	h.cache.InvalidateProduct(r.Context(), id)

	updated, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, "reload product", err)
		return
	}
	api.JSON(w, http.StatusOK, toProduct(updated))
}

// HandleDelete serves DELETE /api/products/{id}/.
func (h *CatalogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.NotFound(w)
		return
	}
	if err := h.repo.DeleteProduct(r.Context(), id); err != nil {
		h.fail(w, "delete product", err)
		return
	}
	h.cache.InvalidateProduct(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, models.ErrProductNotFound):
		api.NotFound(w)
	case errors.Is(err, api.ErrInvalidPage):
		api.Error(w, http.StatusNotFound, "Invalid page.")
	default:
		h.logger.Error(op, zap.Error(err))
		api.InternalError(w)
	}
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (in ProductInput) apply(p *models.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Brand = strings.TrimSpace(in.Brand)
	p.Description = in.Description
	p.Calories = in.Calories
	p.Protein = in.Protein
	p.Carbs = in.Carbs
	p.Fats = in.Fats
}

func inputFrom(p *models.Product) ProductInput {
	return ProductInput{
		Name:        p.Name,
		Brand:       p.Brand,
		Category:    p.Category.Name,
		Description: p.Description,
		Calories:    p.Calories,
		Protein:     p.Protein,
		Carbs:       p.Carbs,
		Fats:        p.Fats,
	}
}

func toProduct(p *models.Product) Product {
	return Product{
		ID:    p.ID,
		Name:  p.Name,
		Brand: p.Brand,
		Category: Category{
			ID:   p.Category.ID,
			Name: p.Category.Name,
			Slug: p.Category.Slug,
		},
		Description: p.Description,
		Calories:    p.Calories,
		Protein:     p.Protein.StringFixed(2),
		Carbs:       p.Carbs.StringFixed(2),
		Fats:        p.Fats.StringFixed(2),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toSearchResult(hit *models.SearchHit, shape api.Shape) SearchResult {
	res := SearchResult{Product: toProduct(&hit.Product)}
	if shape == api.ShapeSearchHit && hit.Rank > 0 {
		rank := hit.Rank
		res.Rank = &rank
	}
	return res
}
