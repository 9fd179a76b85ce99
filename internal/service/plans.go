package service

import (
	"fmt"
	"gym-billing-reconciler/internal/model"
)

var defaultProductTiers = map[string]model.MembershipType{
	"prod_intro":       model.MembershipTypeIntro,
	"prod_no_lock_in":  model.MembershipTypeNoLockIn,
	"prod_12_month":    model.MembershipTypeTwelveMonth,
	"prod_premium":     model.MembershipTypePremium,
	"prod_gym_intro":   model.MembershipTypeIntro,
	"prod_gym_flex":    model.MembershipTypeNoLockIn,
	"prod_gym_annual":  model.MembershipTypeTwelveMonth,
	"prod_gym_premium": model.MembershipTypePremium,
}

// PlanResolver maps checkout metadata and product IDs to membership tiers.
type PlanResolver struct {
	tiers map[string]model.MembershipType
}

// NewPlanResolver layers overrides (product id -> tier) on top of the built-in table.
func NewPlanResolver(overrides map[string]string) (*PlanResolver, error) {
	tiers := make(map[string]model.MembershipType, len(defaultProductTiers)+len(overrides))
	for k, v := range defaultProductTiers {
		tiers[k] = v
	}
	for product, tier := range overrides {
		t := model.MembershipType(tier)
		if !t.Valid() {
			return nil, fmt.Errorf("product %s: unknown membership tier %q", product, tier)
		}
		tiers[product] = t
	}
	return &PlanResolver{tiers: tiers}, nil
}

// Resolve prefers a valid tier from checkout metadata, then the product table, then intro.
func (p *PlanResolver) Resolve(metadataTier, productID string) model.MembershipType {
	if t := model.MembershipType(metadataTier); t.Valid() {
		return t
	}
	if t, ok := p.tiers[productID]; ok {
		return t
	}
	return model.MembershipTypeIntro
}
