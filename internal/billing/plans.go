package billing

import "github.com/geocoder89/resumeforge/internal/domain/user"

// PriceTable maps external price identifiers to plan tiers.
type PriceTable struct {
	entries map[string]user.PlanChange
}

func NewPriceTable(basicPriceID, proPriceID string) PriceTable {
	t := PriceTable{entries: make(map[string]user.PlanChange, 2)}
	if basicPriceID != "" {
		t.entries[basicPriceID] = user.ChangeTo(user.PlanBasic)
	}
	if proPriceID != "" {
		t.entries[proPriceID] = user.ChangeTo(user.PlanPro)
	}
	return t
}

func (t PriceTable) Lookup(priceID string) (user.PlanChange, bool) {
	change, ok := t.entries[priceID]
	return change, ok
}

func (t PriceTable) Contains(priceID string) bool {
	_, ok := t.entries[priceID]
	return ok
}
