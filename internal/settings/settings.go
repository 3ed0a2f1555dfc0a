// Package settings reads tenant-level configuration used by the financial
// engines. The VAT rate and currency are resolved once per request and passed
// explicitly into pricing so the computation stays a pure function of its
// inputs.
package settings

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fleetcore/fleetcore/internal/shared"
)

// TaxConfig carries the tax parameters for one pricing computation.
type TaxConfig struct {
	VATPercent float64
	Currency   string
}

// Repository abstracts the settings store.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
}

// Service resolves tenant settings with documented fallbacks.
type Service struct {
	repo Repository

	fallbackVAT      float64
	fallbackCurrency string
}

// NewService builds a settings service. Zero fallbacks select the shared
// defaults (5% VAT, AED).
func NewService(repo Repository, fallbackVAT float64, fallbackCurrency string) *Service {
	if fallbackVAT <= 0 {
		fallbackVAT = shared.DefaultVATPercent
	}
	if fallbackCurrency == "" {
		fallbackCurrency = shared.DefaultCurrency
	}
	return &Service{repo: repo, fallbackVAT: fallbackVAT, fallbackCurrency: fallbackCurrency}
}

const (
	keyVATPercent = "billing.vat_percent"
	keyCurrency   = "billing.currency"
)

// TaxConfig resolves the current VAT percent and currency.
func (s *Service) TaxConfig(ctx context.Context) (TaxConfig, error) {
	cfg := TaxConfig{VATPercent: s.fallbackVAT, Currency: s.fallbackCurrency}

	raw, err := s.repo.Get(ctx, keyVATPercent)
	switch {
	case err == nil && raw != "":
		pct, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil {
			return TaxConfig{}, fmt.Errorf("settings: parse vat percent %q: %w", raw, parseErr)
		}
		cfg.VATPercent = pct
	case err != nil && err != shared.ErrNotFound:
		return TaxConfig{}, fmt.Errorf("settings: load vat percent: %w", err)
	}

	raw, err = s.repo.Get(ctx, keyCurrency)
	switch {
	case err == nil && raw != "":
		cfg.Currency = raw
	case err != nil && err != shared.ErrNotFound:
		return TaxConfig{}, fmt.Errorf("settings: load currency: %w", err)
	}

	return cfg, nil
}
