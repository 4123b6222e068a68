package models

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// SearchMode selects how a search term is matched against the catalog.
type SearchMode int

const (
	// SubstringMode matches by case-insensitive containment. Used for very
	// short terms where trigram similarity cannot discriminate.
	SubstringMode SearchMode = iota + 1
	// SimilarityMode ranks by a weighted sum of trigram similarities.
	SimilarityMode
)

func (m SearchMode) String() string {
	switch m {
	case SubstringMode:
		return "substring"
	case SimilarityMode:
		return "similarity"
	default:
		return "unknown"
	}
}

// SearchWeights are the per-column multipliers of the similarity rank.
type SearchWeights struct {
	Name        float64
	Brand       float64
	Description float64
	Category    float64
}

// SearchQuery is a fully planned search. Term and Category are already
// normalized; nil calorie bounds are not applied.
type SearchQuery struct {
	Mode          SearchMode
	Term          string
	Category      string
	CaloriesMin   *float64
	CaloriesMax   *float64
	Weights       SearchWeights
	RankThreshold float64
}

// SearchHit is one ranked search result. Rank is only computed in SimilarityMode.
type SearchHit struct {
	Product        Product
	Rank           float64
	ExactNameMatch bool
}

type searchRow struct {
	ID             uint
	SearchRank     float64
	ExactNameMatch bool
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s literally anywhere in the value.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// Search returns one ordered page of hits plus the size of the whole result set.
// Rows with an exact (substring) name match come first; ties are broken by
// rank (similarity mode), then name, then id.
func (r *ProductsRepository) Search(ctx context.Context, q SearchQuery, offset, limit int) ([]SearchHit, int64, error) {
	if q.Term == "" {
		return []SearchHit{}, 0, nil
	}

	like := "LIKE"
	if r.db.Dialector.Name() == DriverPostgres {
		like = "ILIKE"
	}
	contains := func(column, param string) string {
		return fmt.Sprintf(`%s %s @%s ESCAPE '\'`, column, like, param)
	}
	rank := rankExpression(q.Weights)
	params := map[string]interface{}{
		"term":      q.Term,
		"pattern":   containsPattern(q.Term),
		"threshold": q.RankThreshold,
	}

	filtered := func(db *gorm.DB) *gorm.DB {
		db = db.Joins("JOIN categories ON categories.id = products.category_id")

		// Filter
		if q.Category != "" {
			db = db.Where(contains("categories.name", "category"), sql.Named("category", containsPattern(q.Category)))
		}
		if q.CaloriesMin != nil {
			db = db.Where("products.calories >= ?", *q.CaloriesMin)
		}
		if q.CaloriesMax != nil {
			db = db.Where("products.calories <= ?", *q.CaloriesMax)
		}

		switch q.Mode {
		case SimilarityMode:
			db = db.Where("("+rank+") > @threshold", params)
		default:
			db = db.Where(fmt.Sprintf("(%s OR %s OR %s OR %s)",
				contains("products.name", "pattern"),
				contains("products.brand", "pattern"),
				contains("products.description", "pattern"),
				contains("categories.name", "pattern"),
			), params)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&Product{}).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}
	if total == 0 {
		return []SearchHit{}, 0, nil
	}

	exact := "CASE WHEN " + contains("products.name", "pattern") + " THEN 1 ELSE 0 END AS exact_name_match"
	selectExpr := "products.id AS id, 0 AS search_rank, " + exact
	order := "exact_name_match DESC, products.name ASC, products.id ASC"
	if q.Mode == SimilarityMode {
		selectExpr = "products.id AS id, (" + rank + ") AS search_rank, " + exact
		order = "exact_name_match DESC, search_rank DESC, products.name ASC, products.id ASC"
	}

	var rows []searchRow
	if err := r.db.WithContext(ctx).
		Model(&Product{}).
		Scopes(filtered).
		Select(selectExpr, params).
		Order(order).
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("rank search results: %w", err)
	}
	if len(rows) == 0 {
		return []SearchHit{}, total, nil
	}

	ids := make([]uint, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var products []Product
	if err := r.db.WithContext(ctx).Preload("Category").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("load search results: %w", err)
	}
	byID := make(map[uint]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	hits := make([]SearchHit, 0, len(rows))
	for _, row := range rows {
		product, ok := byID[row.ID]
		if !ok {
			// Deleted between the two reads.
			continue
		}
		hits = append(hits, SearchHit{
			Product:        product,
			Rank:           row.SearchRank,
			ExactNameMatch: row.ExactNameMatch,
		})
	}
	return hits, total, nil
}

func rankExpression(w SearchWeights) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return "similarity(products.name, @term) * " + f(w.Name) +
		" + similarity(products.brand, @term) * " + f(w.Brand) +
		" + similarity(products.description, @term) * " + f(w.Description) +
		" + similarity(categories.name, @term) * " + f(w.Category)
}
