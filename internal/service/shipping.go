package service

import (
	"encoding/json"
	"fmt"
	"gym-billing-reconciler/internal/model"
	"strings"
)

// shippingAddressInput accepts both the legacy flat shape (street, postcode) and the
// structured one (addressLine1, addressLine2, postalCode).
type shippingAddressInput struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Street       string `json:"street"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

// ParseShippingAddress normalizes the JSON-encoded shippingAddress metadata value.
func ParseShippingAddress(raw string) (model.ShippingAddress, error) {
	var in shippingAddressInput
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return model.ShippingAddress{}, fmt.Errorf("decode shipping address: %w", err)
	}

	addr := model.ShippingAddress{
		Name:       strings.TrimSpace(in.Name),
		Line1:      firstNonEmpty(in.AddressLine1, in.Street),
		Line2:      strings.TrimSpace(in.AddressLine2),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		PostalCode: firstNonEmpty(in.PostalCode, in.Postcode),
		Country:    strings.TrimSpace(in.Country),
		Phone:      strings.TrimSpace(in.Phone),
	}
	if addr.Line1 == "" {
		return model.ShippingAddress{}, fmt.Errorf("shipping address has no street line")
	}

	return addr, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
