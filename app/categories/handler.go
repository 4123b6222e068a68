package categories

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MrMohammed1/miran-search/app/api"
	"github.com/MrMohammed1/miran-search/app/logging"
	"github.com/MrMohammed1/miran-search/models"
)

type CategoryResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

type CategoryProvider interface {
	GetAllCategories(ctx context.Context, offset, limit int) ([]models.Category, int64, error)
	GetByID(ctx context.Context, id uint) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id uint) error
}

// CatalogInvalidator drops cached product data. Category names are embedded
// in product responses and deleting a category deletes its products.
type CatalogInvalidator interface {
	InvalidateCatalog(ctx context.Context)
}

type CategoryHandler struct {
	repo      CategoryProvider
	cache     CatalogInvalidator
	validator *api.Validator
	paginator api.Paginator
	logger    *zap.Logger
}

func NewCategoryHandler(r CategoryProvider, cache CatalogInvalidator, v *api.Validator, paginator api.Paginator, logger *zap.Logger) *CategoryHandler {
	if paginator.DefaultSize == 0 {
		paginator = api.DefaultPaginator()
	}
	return &CategoryHandler{
		repo:      r,
		cache:     cache,
		validator: v,
		paginator: paginator,
		logger:    logging.OrNop(logger),
	}
}

// HandleGetAll serves GET /api/categories/.
func (h *CategoryHandler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	pr, err := h.paginator.Parse(r)
	if err != nil {
		api.Error(w, http.StatusNotFound, "Invalid page.")
		return
	}

	categories, total, err := h.repo.GetAllCategories(r.Context(), pr.Offset(), pr.Size)
	if err != nil {
		h.fail(w, "list categories", err)
		return
	}

	response := make([]CategoryResponse, len(categories))
	for i := range categories {
		response[i] = toResponse(&categories[i])
	}
	page, err := api.NewPage(r, pr, total, response)
	if err != nil {
		h.fail(w, "list categories", err)
		return
	}
	api.JSON(w, http.StatusOK, page)
}

// HandleGet serves GET /api/categories/{id}/.
func (h *CategoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.NotFound(w)
		return
	}
	category, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, "retrieve category", err)
		return
	}
	api.JSON(w, http.StatusOK, toResponse(category))
}

// HandleCreate serves POST /api/categories/.
func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CategoryInput
	if !h.validator.Bind(w, r, &input) {
		return
	}

	category := &models.Category{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
	}
	if err := h.repo.CreateCategory(r.Context(), category); err != nil {
		h.fail(w, "create category", err)
		return
	}
	api.JSON(w, http.StatusCreated, toResponse(category))
}

// HandleUpdate serves PUT /api/categories/{id}/.
func (h *CategoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePatch serves PATCH /api/categories/{id}/.
func (h *CategoryHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *CategoryHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	id, ok := pathID(r)
	if !ok {
		api.NotFound(w)
		return
	}
	category, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, "load category", err)
		return
	}

	var input CategoryInput
	if partial {
		input = CategoryInput{Name: category.Name, Description: category.Description}
	}
	if !h.validator.Bind(w, r, &input) {
		return
	}

	category.Name = strings.TrimSpace(input.Name)
	category.Description = input.Description
	if err := h.repo.UpdateCategory(r.Context(), category); err != nil {
		h.fail(w, "update category", err)
		return
	}
	h.cache.InvalidateCatalog(r.Context())

	api.JSON(w, http.StatusOK, toResponse(category))
}

// HandleDelete serves DELETE /api/categories/{id}/. Products of the
// category are deleted with it.
func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.NotFound(w)
		return
	}
	if err := h.repo.DeleteCategory(r.Context(), id); err != nil {
		h.fail(w, "delete category", err)
		return
	}
	h.cache.InvalidateCatalog(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, models.ErrCategoryNotFound):
		api.NotFound(w)
	case errors.Is(err, models.ErrDuplicateName):
		api.JSON(w, http.StatusBadRequest, api.FieldErrors{"name": {"category with this name already exists."}})
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

func toResponse(c *models.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
	}
}
