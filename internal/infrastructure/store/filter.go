package store

import (
	"strings"

	"github.com/example/ec-storefront/internal/domain/model"
)

// matchProduct applies a normalised filter: case-insensitive substring on
// name, exact category when set, inclusive price bounds.
func matchProduct(p *model.Product, f model.ProductFilter) bool {
	if p.Archived && !f.IncludeArchived {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && p.UnitPrice.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.UnitPrice.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}

// escapeLike escapes the LIKE metacharacters of s using backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
