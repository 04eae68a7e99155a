/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts JSON catalog definitions into an incentive.Catalog. Store
  managers change star values, bracket boundaries and N-for-1 multipliers
  without code changes; the factory validates and builds the Go structs.

JSON SCHEMA:
  {
    "bracket_category": "Insurance",
    "brackets": [
      {"label": "0-99kr x3",    "min": "0"},
      {"label": "100-299kr x2", "min": "100"},
      {"label": "300-499kr",    "min": "300"}
    ],
    "rules": [
      {"category": "Insurance",    "service_key": "0-99kr x3",    "base_stars": 1, "multiplier": 3},
      {"category": "Insurance",    "service_key": "100-299kr x2", "base_stars": 1, "multiplier": 2},
      {"category": "Subscription", "service_key": "mobile",       "base_stars": 2, "is_recurring": true}
    ]
  }

KEY FEATURES:
  - multiplier defaults to 1 (flat rule) when omitted
  - bracket mins accept JSON numbers or strings (decimal, no float rounding)
  - every bracket label of bracket_category must have a rule

USAGE:
  f := NewCatalogFactory()

  // From JSON string
  catalog, err := f.ParseCatalog(jsonString)

  // Built-in defaults
  catalog, err := f.ParseCatalog(DefaultCatalogJSON())

SEE ALSO:
  - incentive/catalog.go: Catalog type definition
  - incentive/bracket.go: BracketTable validation
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/star-engine/incentive"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a catalog.
type CatalogJSON struct {
	BracketCategory string        `json:"bracket_category,omitempty"`
	Brackets        []BracketJSON `json:"brackets,omitempty"`
	Rules           []RuleJSON    `json:"rules"`
}

// BracketJSON represents one amount bracket.
type BracketJSON struct {
	Label string           `json:"label"`
	Min   decimal.Decimal  `json:"min"`
	Max   *decimal.Decimal `json:"max,omitempty"` // exclusive, output only; nil for the top bracket
}

// RuleJSON represents one service rule.
type RuleJSON struct {
	Category    string `json:"category"`
	ServiceKey  string `json:"service_key"`
	BaseStars   int    `json:"base_stars"`
	Multiplier  int    `json:"multiplier,omitempty"` // 0 or omitted means 1
	IsRecurring bool   `json:"is_recurring,omitempty"`
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

// CatalogFactory converts JSON catalogs to Go structs.
type CatalogFactory struct{}

// NewCatalogFactory creates a new catalog factory.
func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{}
}

// ParseCatalog parses a JSON string into a Catalog.
func (f *CatalogFactory) ParseCatalog(jsonStr string) (*incentive.Catalog, error) {
	var cj CatalogJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("%w: invalid catalog JSON: %v", incentive.ErrInvalidRule, err)
	}
	return f.FromJSON(cj)
}

// LoadFile reads and parses a catalog JSON file.
func (f *CatalogFactory) LoadFile(path string) (*incentive.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return f.ParseCatalog(string(data))
}

// FromJSON converts a CatalogJSON into a validated Catalog.
func (f *CatalogFactory) FromJSON(cj CatalogJSON) (*incentive.Catalog, error) {
	if len(cj.Rules) == 0 {
		return nil, fmt.Errorf("%w: catalog has no rules", incentive.ErrInvalidRule)
	}

	var brackets incentive.BracketTable
	if cj.BracketCategory != "" {
		bs := make([]incentive.Bracket, len(cj.Brackets))
		for i, b := range cj.Brackets {
			bs[i] = incentive.Bracket{Label: b.Label, Min: b.Min}
		}
		table, err := incentive.NewBracketTable(bs)
		if err != nil {
			return nil, err
		}
		brackets = table
	} else if len(cj.Brackets) > 0 {
		return nil, fmt.Errorf("%w: brackets given without bracket_category", incentive.ErrInvalidRule)
	}

	rules := make([]incentive.ServiceRule, len(cj.Rules))
	for i, rj := range cj.Rules {
		mult := rj.Multiplier
		if mult == 0 {
			mult = 1
		}
		rules[i] = incentive.ServiceRule{
			Category:    rj.Category,
			ServiceKey:  rj.ServiceKey,
			BaseStars:   rj.BaseStars,
			Multiplier:  mult,
			IsRecurring: rj.IsRecurring,
		}
	}

	return incentive.NewCatalog(rules, brackets, cj.BracketCategory)
}

// ToJSON converts a Catalog back to its JSON form.
func (f *CatalogFactory) ToJSON(c *incentive.Catalog) CatalogJSON {
	cj := CatalogJSON{BracketCategory: c.BracketCategory()}
	table := c.Brackets()
	for _, b := range table.Brackets() {
		bj := BracketJSON{Label: b.Label, Min: b.Min}
		if upper, ok := table.Upper(b.Label); ok {
			bj.Max = &upper
		}
		cj.Brackets = append(cj.Brackets, bj)
	}
	for _, r := range c.Rules() {
		cj.Rules = append(cj.Rules, RuleJSON{
			Category:    r.Category,
			ServiceKey:  r.ServiceKey,
			BaseStars:   r.BaseStars,
			Multiplier:  r.Multiplier,
			IsRecurring: r.IsRecurring,
		})
	}
	return cj
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultCatalogJSON returns the built-in store catalog.
//
// Insurance is scored by sale amount; small premiums need several sales per
// star (x3, x2) while large ones earn more per sale. Subscriptions are
// recurring and credited once per staff per billing month.
func DefaultCatalogJSON() string {
	return `{
  "bracket_category": "Insurance",
  "brackets": [
    {"label": "0-99kr x3",    "min": "0"},
    {"label": "100-299kr x2", "min": "100"},
    {"label": "300-499kr",    "min": "300"},
    {"label": "500-999kr",    "min": "500"},
    {"label": "1000-1499kr",  "min": "1000"},
    {"label": "1500kr+",      "min": "1500"}
  ],
  "rules": [
    {"category": "Insurance", "service_key": "0-99kr x3",    "base_stars": 1, "multiplier": 3},
    {"category": "Insurance", "service_key": "100-299kr x2", "base_stars": 1, "multiplier": 2},
    {"category": "Insurance", "service_key": "300-499kr",    "base_stars": 1},
    {"category": "Insurance", "service_key": "500-999kr",    "base_stars": 2},
    {"category": "Insurance", "service_key": "1000-1499kr",  "base_stars": 3},
    {"category": "Insurance", "service_key": "1500kr+",      "base_stars": 4},

    {"category": "Subscription", "service_key": "mobile",    "base_stars": 2, "is_recurring": true},
    {"category": "Subscription", "service_key": "broadband", "base_stars": 2, "is_recurring": true},
    {"category": "Subscription", "service_key": "streaming", "base_stars": 1, "is_recurring": true},

    {"category": "Services", "service_key": "setup",     "base_stars": 1},
    {"category": "Services", "service_key": "recycling", "base_stars": 1, "multiplier": 3},

    {"category": "Accessories", "service_key": "screen-protector", "base_stars": 1, "multiplier": 2},
    {"category": "Accessories", "service_key": "case",             "base_stars": 1, "multiplier": 2},
    {"category": "Accessories", "service_key": "charger",          "base_stars": 1},

    {"category": "Finance", "service_key": "credit-account", "base_stars": 3}
  ]
}`
}

// DefaultCatalog parses DefaultCatalogJSON. It panics only if the built-in
// JSON is malformed.
func DefaultCatalog() *incentive.Catalog {
	c, err := NewCatalogFactory().ParseCatalog(DefaultCatalogJSON())
	if err != nil {
		panic(fmt.Sprintf("factory: default catalog: %v", err))
	}
	return c
}
