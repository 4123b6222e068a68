package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/MrMohammed1/miran-search/app/api"
	"github.com/MrMohammed1/miran-search/app/cache"
	"github.com/MrMohammed1/miran-search/app/search"
	"github.com/MrMohammed1/miran-search/models"
)

// --- Mock Repository ---

type MockProductRepo struct {
	Products  map[uint]*models.Product
	Err       error
	nextID    uint
	listCalls int
	getCalls  int
}

func NewMockProductRepo(products ...models.Product) *MockProductRepo {
	m := &MockProductRepo{Products: map[uint]*models.Product{}}
	for i := range products {
		p := products[i]
		m.Products[p.ID] = &p
		if p.ID > m.nextID {
			m.nextID = p.ID
		}
	}
	return m
}

func (m *MockProductRepo) sorted() []models.Product {
	out := make([]models.Product, 0, len(m.Products))
	for _, p := range m.Products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockProductRepo) GetProducts(ctx context.Context, offset, limit int) ([]models.Product, int64, error) {
	m.listCalls++
	if m.Err != nil {
		return nil, 0, m.Err
	}
	all := m.sorted()
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *MockProductRepo) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	m.getCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockProductRepo) CreateProduct(ctx context.Context, product *models.Product) error {
	if m.Err != nil {
		return m.Err
	}
	m.nextID++
	product.ID = m.nextID
	product.CategoryID = product.Category.ID
	product.CreatedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	product.UpdatedAt = product.CreatedAt
	cp := *product
	m.Products[product.ID] = &cp
	return nil
}

func (m *MockProductRepo) SaveProduct(ctx context.Context, product *models.Product) error {
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Products[product.ID]; !ok {
		return models.ErrProductNotFound
	}
	cp := *product
	m.Products[product.ID] = &cp
	return nil
}

func (m *MockProductRepo) DeleteProduct(ctx context.Context, id uint) error {
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Products[id]; !ok {
		return models.ErrProductNotFound
	}
	delete(m.Products, id)
	return nil
}

type MockCategoryResolver struct {
	Categories map[string]*models.Category
	Calls      []string
}

func (m *MockCategoryResolver) UpsertByName(ctx context.Context, name string) (*models.Category, error) {
	m.Calls = append(m.Calls, name)
	if m.Categories == nil {
		m.Categories = map[string]*models.Category{}
	}
	if c, ok := m.Categories[name]; ok {
		return c, nil
	}
	c := &models.Category{ID: uint(100 + len(m.Categories)), Name: name, Slug: models.Slugify(name)}
	m.Categories[name] = c
	return c, nil
}

type MockSearcher struct {
	Hits       []models.SearchHit
	Total      int64
	Err        error
	Calls      int
	LastParams search.Params
	LastOffset int
	LastLimit  int
}

func (m *MockSearcher) Search(ctx context.Context, params search.Params, offset, limit int) ([]models.SearchHit, int64, error) {
	m.Calls++
	m.LastParams = params
	m.LastOffset = offset
	m.LastLimit = limit
	return m.Hits, m.Total, m.Err
}

type fixture struct {
	handler    *CatalogHandler
	repo       *MockProductRepo
	categories *MockCategoryResolver
	searcher   *MockSearcher
	backend    *cache.MemoryBackend
}

func newFixture(products ...models.Product) fixture {
	f := fixture{
		repo:       NewMockProductRepo(products...),
		categories: &MockCategoryResolver{},
		searcher:   &MockSearcher{},
		backend:    cache.NewMemoryBackend(),
	}
	layer := cache.NewLayer(f.backend, 0, nil, nil)
	f.handler = NewCatalogHandler(f.repo, f.categories, f.searcher, layer, api.NewValidator(), Config{}, nil)
	return f
}

var fruits = models.Category{ID: 1, Name: "Fruits", Slug: "fruits"}
