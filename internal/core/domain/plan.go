package domain

import (
	"fmt"
	"strings"
)

// Plan ties a paid tier to its billing-provider price and its per-period credit allocation.
type Plan struct {
	Name    SubscriptionStatus `json:"name"`
	PriceID string             `json:"priceID"`
	Credits int64              `json:"credits"`
}

// PlanCatalog resolves plans by name or by price reference.
type PlanCatalog struct {
	byName  map[SubscriptionStatus]Plan
	byPrice map[string]Plan
}

// NewPlanCatalog builds a catalog. Price IDs may be empty (plan sold only through
// checkout metadata) but must be unique when set.
func NewPlanCatalog(plans ...Plan) (*PlanCatalog, error) {
	c := &PlanCatalog{
		byName:  make(map[SubscriptionStatus]Plan, len(plans)),
		byPrice: make(map[string]Plan, len(plans)),
	}
	for _, p := range plans {
		name, ok := ParseSubscriptionStatus(string(p.Name))
		if !ok || name == StatusFree {
			return nil, fmt.Errorf("invalid paid plan name %q", p.Name)
		}
		if p.Credits <= 0 {
			return nil, fmt.Errorf("plan %s must allocate a positive number of credits", name)
		}
		p.Name = name
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("plan %s configured twice", name)
		}
		c.byName[name] = p
		if p.PriceID != "" {
			if other, dup := c.byPrice[p.PriceID]; dup {
				return nil, fmt.Errorf("price %s is used by both %s and %s", p.PriceID, other.Name, name)
			}
			c.byPrice[p.PriceID] = p
		}
	}
	return c, nil
}

// ByName resolves a plan name case-insensitively.
func (c *PlanCatalog) ByName(name string) (Plan, bool) {
	p, ok := c.byName[SubscriptionStatus(strings.ToLower(strings.TrimSpace(name)))]
	return p, ok
}

// ByPriceID resolves a billing-provider price reference.
func (c *PlanCatalog) ByPriceID(priceID string) (Plan, bool) {
	p, ok := c.byPrice[priceID]
	return p, ok
}
