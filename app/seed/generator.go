// Package seed generates test catalog data in bulk.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MrMohammed1/miran-search/models"
)

// maxNameAttempts bounds the search for an unused product name before the
// generator falls back to a plain adjective and product.
const maxNameAttempts = 10

var (
	categoryNames = []string{"Fruits", "Vegetables", "Dairy", "Grains", "Proteins"}

	arabicProducts   = []string{"تفاحة", "موزة", "جبنة", "خبز", "دجاج", "برتقال", "طماطس", "حليب", "أرز", "لحم"}
	arabicAdjectives = []string{"طازج", "عضوي", "أحمر", "أخضر", "طبيعي", "مشوي", "ممتاز", "محلي"}
	arabicWords      = []string{"الواحة", "النخيل", "الريف", "الجبل", "السهل", "البيت", "الصباح", "الخليج", "الوادي", "القرية", "النهر", "الربيع"}
	arabicBrands     = []string{"المراعي", "نادك", "الصافي", "الوطنية", "السعودية للأغذية", "الربيع", "الطيبات", "البساتين"}
	arabicSentences  = []string{
		"منتج غذائي عالي الجودة مناسب لجميع أفراد العائلة",
		"مصدر ممتاز للطاقة والفيتامينات في وجبة الإفطار",
		"يحفظ في مكان بارد وجاف بعيدا عن أشعة الشمس",
		"محضر بعناية من مكونات طبيعية مختارة",
	}

	englishProducts   = []string{"Apple", "Banana", "Cheese", "Bread", "Chicken", "Orange", "Tomato", "Milk", "Rice", "Meat"}
	englishAdjectives = []string{"Fresh", "Organic", "Red", "Green", "Natural", "Grilled", "Premium", "Local"}
	englishWords      = []string{"Valley", "Harvest", "Garden", "Sunrise", "Meadow", "River", "Orchard", "Prairie", "Summit", "Coastal", "Classic", "Golden"}
	englishBrands     = []string{"Green Fields Co", "Sunny Farms", "Kraft", "Tropicana", "Nature Valley", "Blue Ridge Foods", "Oak Hill Dairy", "Harvest Mills"}
	englishSentences  = []string{
		"A wholesome everyday staple packed with natural goodness.",
		"Carefully sourced from trusted local growers and producers.",
		"Store in a cool dry place away from direct sunlight.",
		"Great as a snack or as part of a balanced meal.",
	}
)

type CategoryResolver interface {
	UpsertByName(ctx context.Context, name string) (*models.Category, error)
}

// EnsureCategories get-or-creates the fixed seed categories.
func EnsureCategories(ctx context.Context, resolver CategoryResolver) ([]models.Category, error) {
	categories := make([]models.Category, 0, len(categoryNames))
	for _, name := range categoryNames {
		category, err := resolver.UpsertByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("ensure category %s: %w", name, err)
		}
		categories = append(categories, *category)
	}
	return categories, nil
}

// Generator produces random products with mixed Arabic and English names.
// It is not safe for concurrent use.
type Generator struct {
	rng        *rand.Rand
	categories []models.Category
	used       map[string]struct{}
}

// NewGenerator returns a generator drawing from a deterministic source.
// usedNames are names already in the catalog that should not be repeated.
func NewGenerator(seed int64, categories []models.Category, usedNames []string) *Generator {
	used := make(map[string]struct{}, len(usedNames))
	for _, name := range usedNames {
		used[name] = struct{}{}
	}
	return &Generator{
		rng:        rand.New(rand.NewSource(seed)),
		categories: categories,
		used:       used,
	}
}

// Product returns the next generated product. CategoryID refers to one of the
// generator's categories.
func (g *Generator) Product() models.Product {
	arabic := g.rng.Intn(2) == 0

	adjectives, products, words := englishAdjectives, englishProducts, englishWords
	brands, sentences := englishBrands, englishSentences
	if arabic {
		adjectives, products, words = arabicAdjectives, arabicProducts, arabicWords
		brands, sentences = arabicBrands, arabicSentences
	}

	name := ""
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		candidate := strings.Join([]string{g.pick(adjectives), g.pick(products), g.pick(words)}, " ")
		if _, taken := g.used[candidate]; !taken {
			name = candidate
			break
		}
	}
	if name == "" {
		name = g.pick(adjectives) + " " + g.pick(products)
	}
	g.used[name] = struct{}{}

	category := g.categories[g.rng.Intn(len(g.categories))]
	return models.Product{
		Name:        name,
		Brand:       g.pick(brands),
		CategoryID:  category.ID,
		Description: g.pick(sentences),
		Calories:    10 + g.rng.Intn(491),
		Protein:     g.macro(),
		Carbs:       g.macro(),
		Fats:        g.macro(),
	}
}

func (g *Generator) pick(words []string) string {
	return words[g.rng.Intn(len(words))]
}

// macro returns a value in [0, 50.00] with two decimal places.
func (g *Generator) macro() decimal.Decimal {
	return decimal.New(int64(g.rng.Intn(5001)), -2)
}
