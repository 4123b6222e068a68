package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key families. These strings are part of the operational contract: other
// tooling may inspect or flush them directly.
const (
	ProductPrefix     = "product:"
	ProductListPrefix = "product-list:"
	SearchPrefix      = "product-search:"
	SearchRegistry    = "product-search-keys"
)

func ProductKey(id uint) string {
	return ProductPrefix + strconv.FormatUint(uint64(id), 10)
}

func ProductListKey(page int) string {
	return ProductListPrefix + strconv.Itoa(page)
}

// SearchKey derives a fixed-length key from the canonical search parameters.
// The parts are joined with a unit separator so that ("ab", "c") and
// ("a", "bc") hash differently.
func SearchKey(parts ...string) string {
	sum := xxhash.Sum64String(strings.Join(parts, "\x1f"))
	return SearchPrefix + strconv.FormatUint(sum, 16)
}

// family maps a key to its metrics label.
func family(key string) string {
	switch {
	case strings.HasPrefix(key, ProductListPrefix):
		return "product-list"
	case strings.HasPrefix(key, SearchPrefix):
		return "product-search"
	case strings.HasPrefix(key, ProductPrefix):
		return "product"
	default:
		return "other"
	}
}
