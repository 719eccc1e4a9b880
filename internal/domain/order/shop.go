package order

import (
	"strings"
	"time"
)

// Shop is a tenant whose webhooks are ingested. Read-only during reconciliation.
type Shop struct {
	ID           int64
	Domain       string
	Name         string
	SharedSecret string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewShop creates a shop for the given platform domain
func NewShop(id int64, domain, name, secret string) *Shop {
	now := time.Now()
	return &Shop{
		ID:           id,
		Domain:       NormalizeDomain(domain),
		Name:         name,
		SharedSecret: secret,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasSecret reports whether webhooks from this shop must be signed
func (s *Shop) HasSecret() bool {
	return s.SharedSecret != ""
}

// RotateSecret replaces the shared secret. An empty secret disables verification.
func (s *Shop) RotateSecret(secret string) {
	s.SharedSecret = secret
	s.UpdatedAt = time.Now()
}

// NormalizeDomain trims whitespace and lowercases a shop domain
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
