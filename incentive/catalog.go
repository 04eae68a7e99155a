/*
catalog.go - ServiceCatalog: the table of scoring rules

PURPOSE:
  Holds every ServiceRule keyed by (category, serviceKey) together with the
  bracket table of the amount-bracketed category. A Catalog is an explicit
  value handed to the scorer; nothing in the engine looks it up globally.

AMOUNT-BRACKETED CATEGORY:
  One category (e.g. "Insurance") is scored by sale amount. Its rules are
  keyed by bracket label, so resolving such a sale means classifying the
  amount first:

    150kr Insurance -> bracket "100-299kr x2" -> rule Insurance/"100-299kr x2"

VALIDATION:
  NewCatalog rejects duplicate keys, multiplier < 1, baseStars < 0, and a
  bracketed category whose labels do not all have rules.

SEE ALSO:
  - bracket.go: BracketTable
  - factory/catalog.go: JSON -> Catalog
*/
package incentive

import (
	"fmt"
	"sort"
)

// Catalog is immutable once built.
type Catalog struct {
	rules           map[RuleKey]ServiceRule
	brackets        BracketTable
	bracketCategory string
}

// NewCatalog builds a catalog. bracketCategory may be empty when no category
// is scored by amount.
func NewCatalog(rules []ServiceRule, brackets BracketTable, bracketCategory string) (*Catalog, error) {
	c := &Catalog{
		rules:           make(map[RuleKey]ServiceRule, len(rules)),
		brackets:        brackets,
		bracketCategory: bracketCategory,
	}

	for _, r := range rules {
		if r.Category == "" || r.ServiceKey == "" {
			return nil, fmt.Errorf("%w: rule needs category and service key", ErrInvalidRule)
		}
		if r.Multiplier < 1 {
			return nil, fmt.Errorf("%w: %s multiplier %d must be >= 1", ErrInvalidRule, r.Key(), r.Multiplier)
		}
		if r.BaseStars < 0 {
			return nil, fmt.Errorf("%w: %s base stars %d must be >= 0", ErrInvalidRule, r.Key(), r.BaseStars)
		}
		if _, dup := c.rules[r.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate rule %s", ErrInvalidRule, r.Key())
		}
		r.Bracketed = bracketCategory != "" && r.Category == bracketCategory
		if r.Bracketed && !brackets.has(r.ServiceKey) {
			return nil, fmt.Errorf("%w: %s is not a bracket label", ErrInvalidRule, r.Key())
		}
		c.rules[r.Key()] = r
	}

	if bracketCategory != "" {
		if len(brackets.brackets) == 0 {
			return nil, fmt.Errorf("%w: bracketed category %q has no bracket table", ErrInvalidRule, bracketCategory)
		}
		for _, b := range brackets.brackets {
			if _, ok := c.rules[RuleKey{Category: bracketCategory, ServiceKey: b.Label}]; !ok {
				return nil, fmt.Errorf("%w: bracket %q has no rule in %s", ErrInvalidRule, b.Label, bracketCategory)
			}
		}
	}
	return c, nil
}

// Lookup returns the rule for (category, serviceKey).
func (c *Catalog) Lookup(category, serviceKey string) (ServiceRule, error) {
	r, ok := c.rules[RuleKey{Category: category, ServiceKey: serviceKey}]
	if !ok {
		return ServiceRule{}, &UnknownRuleError{Category: category, ServiceKey: serviceKey}
	}
	return r, nil
}

// Resolve finds the rule a sale is scored under. For the bracketed category
// the amount is classified first; a missing or non-positive amount is an
// InvalidAmount rejection.
func (c *Catalog) Resolve(sale RawSale) (ServiceRule, error) {
	if c.IsBracketed(sale.Category) {
		if !sale.Amount.Valid {
			return ServiceRule{}, &InvalidAmountError{Category: sale.Category}
		}
		b, ok := c.brackets.Classify(sale.Amount.Decimal)
		if !ok {
			return ServiceRule{}, &InvalidAmountError{Category: sale.Category, Amount: sale.Amount.Decimal.String()}
		}
		return c.Lookup(sale.Category, b.Label)
	}
	return c.Lookup(sale.Category, sale.ServiceKey)
}

func (c *Catalog) IsBracketed(category string) bool {
	return c.bracketCategory != "" && category == c.bracketCategory
}

func (c *Catalog) BracketCategory() string { return c.bracketCategory }
func (c *Catalog) Brackets() BracketTable  { return c.brackets }

// Rules returns all rules ordered by category, then service key.
func (c *Catalog) Rules() []ServiceRule {
	out := make([]ServiceRule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ServiceKey < out[j].ServiceKey
	})
	return out
}

// Scorer returns an EventScorer bound to this catalog's bracket table.
func (c *Catalog) Scorer() Scorer {
	return Scorer{Brackets: c.brackets}
}
