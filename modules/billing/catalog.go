package billing

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Free tier limits, applied when no paid subscription exists.
const (
	FreeMonthlyQuota int64 = 1000
	FreeRateLimit    int64 = 10
)

// PlanLimits is the capability set a plan grants.
type PlanLimits struct {
	Plan         Plan  `yaml:"plan"`
	MonthlyQuota int64 `yaml:"monthly_quota"`
	RateLimit    int64 `yaml:"rate_limit"`
}

// Catalog maps billing-provider price IDs to plans and their limits.
// Lookups for unknown price IDs fall back to the FREE tier rather than
// failing, so a misconfigured price never blocks a webhook.
type Catalog struct {
	mu     sync.RWMutex
	prices map[string]PlanLimits
}

// DefaultCatalog returns the built-in price table.
func DefaultCatalog() *Catalog {
	return &Catalog{prices: map[string]PlanLimits{
		"price_starter":      {Plan: PlanStarter, MonthlyQuota: 10000, RateLimit: 50},
		"price_professional": {Plan: PlanProfessional, MonthlyQuota: 100000, RateLimit: 200},
		"price_enterprise":   {Plan: PlanEnterprise, MonthlyQuota: 1000000, RateLimit: 1000},
	}}
}

// LoadCatalog reads a price table from a YAML file. The file maps price
// IDs to plan limits:
//
//	price_starter:
//	  plan: STARTER
//	  monthly_quota: 10000
//	  rate_limit: 50
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}

	var prices map[string]PlanLimits
	if err := yaml.Unmarshal(raw, &prices); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}

	for priceID, limits := range prices {
		if !limits.Plan.Valid() {
			return nil, fmt.Errorf("plan catalog: %s: unknown plan %q", priceID, limits.Plan)
		}
		if limits.MonthlyQuota <= 0 || limits.RateLimit <= 0 {
			return nil, fmt.Errorf("plan catalog: %s: limits must be positive", priceID)
		}
	}

	return &Catalog{prices: prices}, nil
}

// Resolve returns the limits for a price ID. Unknown prices resolve to
// the FREE tier and ok reports false so callers can log the miss.
func (c *Catalog) Resolve(priceID string) (PlanLimits, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limits, ok := c.prices[priceID]; ok {
		return limits, true
	}
	return PlanLimits{Plan: PlanFree, MonthlyQuota: FreeMonthlyQuota, RateLimit: FreeRateLimit}, false
}

// Prices returns the known price IDs, for diagnostics.
func (c *Catalog) Prices() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.prices))
	for id := range c.prices {
		ids = append(ids, id)
	}
	return ids
}
