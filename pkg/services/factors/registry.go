package factors

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/shopspring/decimal"
)

// Factor converts a consumption quantity into kg CO2e.
type Factor struct {
	Name          string
	Category      domain.Category
	Unit          string
	KgCO2ePerUnit decimal.Decimal
	Source        string
}

// Table is the administrative form of a factor set, as loaded from a file.
type Table struct {
	Version          string
	Factors          []Factor
	CategoryDefaults map[domain.Category]Factor
}

// Match is the outcome of a successful lookup.
type Match struct {
	Factor   Factor
	Fallback bool // category default rather than an exact name match
}

// Registry resolves emission factors. Reads are lock-free; Replace swaps the whole table.
type Registry interface {
	Lookup(name string, category domain.Category) (Match, bool)
	Snapshot() *Snapshot
	Replace(table Table) error
	Version() string
}

// Snapshot is an immutable, indexed view of a Table.
type Snapshot struct {
	version          string
	byName           map[string]Factor
	ordered          []Factor
	categoryDefaults map[domain.Category]Factor
	categoryFallback bool
}

func newSnapshot(table Table, categoryFallback bool) (*Snapshot, error) {
	s := &Snapshot{
		version:          table.Version,
		byName:           make(map[string]Factor, len(table.Factors)),
		ordered:          make([]Factor, 0, len(table.Factors)),
		categoryDefaults: make(map[domain.Category]Factor, len(table.CategoryDefaults)),
		categoryFallback: categoryFallback,
	}

	for i, f := range table.Factors {
		if err := validateFactor(f); err != nil {
			return nil, fmt.Errorf("factor %d: %w", i, err)
		}
		key := NormalizeName(f.Name)
		if _, exists := s.byName[key]; exists {
			return nil, fmt.Errorf("duplicate factor for %q", f.Name)
		}
		s.byName[key] = f
		s.ordered = append(s.ordered, f)
	}

	for category, f := range table.CategoryDefaults {
		if _, err := domain.ParseCategory(string(category)); err != nil {
			return nil, fmt.Errorf("category default: %w", err)
		}
		if f.KgCO2ePerUnit.IsNegative() {
			return nil, fmt.Errorf("category default for %s: negative factor %s", category, f.KgCO2ePerUnit)
		}
		f.Category = category
		if f.Name == "" {
			f.Name = fmt.Sprintf("%s (category default)", category)
		}
		s.categoryDefaults[category] = f
	}

	return s, nil
}

func validateFactor(f Factor) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if _, err := domain.ParseCategory(string(f.Category)); err != nil {
		return err
	}
	if f.KgCO2ePerUnit.IsNegative() {
		return fmt.Errorf("%q has negative factor %s", f.Name, f.KgCO2ePerUnit)
	}
	return nil
}

// Lookup tries the normalized name first, then the category default if enabled.
func (s *Snapshot) Lookup(name string, category domain.Category) (Match, bool) {
	if f, ok := s.byName[NormalizeName(name)]; ok {
		return Match{Factor: f}, true
	}
	if !s.categoryFallback {
		return Match{}, false
	}
	if f, ok := s.categoryDefaults[category]; ok {
		return Match{Factor: f, Fallback: true}, true
	}
	return Match{}, false
}

func (s *Snapshot) Version() string {
	return s.version
}

// Factors returns the exact-match entries in table order.
func (s *Snapshot) Factors() []Factor {
	return append([]Factor(nil), s.ordered...)
}

// CategoryDefaults returns the fallback factors in category order.
func (s *Snapshot) CategoryDefaults() []Factor {
	out := make([]Factor, 0, len(s.categoryDefaults))
	for _, c := range domain.Categories {
		if f, ok := s.categoryDefaults[c]; ok {
			out = append(out, f)
		}
	}
	return out
}

type registry struct {
	current          atomic.Pointer[Snapshot]
	categoryFallback bool
}

// NewRegistry builds a registry from an initial table.
func NewRegistry(table Table, categoryFallback bool) (Registry, error) {
	r := &registry{categoryFallback: categoryFallback}
	if err := r.Replace(table); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *registry) Lookup(name string, category domain.Category) (Match, bool) {
	return r.Snapshot().Lookup(name, category)
}

func (r *registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Replace validates the table fully before publishing it, so readers never observe
// a partially applied update.
func (r *registry) Replace(table Table) error {
	s, err := newSnapshot(table, r.categoryFallback)
	if err != nil {
		return fmt.Errorf("invalid factor table: %w", err)
	}
	r.current.Store(s)
	return nil
}

func (r *registry) Version() string {
	return r.Snapshot().Version()
}

// NormalizeName folds case and collapses whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

var unitAliases = map[string]string{
	"l":         "l",
	"lt":        "l",
	"ltr":       "l",
	"liter":     "l",
	"liters":    "l",
	"litre":     "l",
	"litres":    "l",
	"kwh":       "kwh",
	"mwh":       "mwh",
	"kg":        "kg",
	"kgs":       "kg",
	"kilogram":  "kg",
	"kilograms": "kg",
	"t":         "t",
	"tonne":     "t",
	"tonnes":    "t",
	"m3":        "m3",
	"m³":        "m3",
	"km":        "km",
}

// NormalizeUnit maps common spellings of a unit to one canonical token.
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.TrimSuffix(u, ".")
	if canonical, ok := unitAliases[u]; ok {
		return canonical
	}
	return u
}
