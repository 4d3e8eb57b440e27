package dhis2

import (
	"fmt"
	"log/slog"

	"dhis2dupes/internal/auth"
	"dhis2dupes/internal/config"
)

// NewConfigured builds a client from the [dhis2] configuration section.
// Callers should run cfg.RequireDHIS2 first for operator-friendly messages.
func NewConfigured(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("dhis2: config required")
	}
	authorizer, err := auth.FromConfig(cfg.DHIS2)
	if err != nil {
		return nil, fmt.Errorf("dhis2 auth: %w", err)
	}
	base := []Option{
		WithTimeout(cfg.RequestTimeout()),
		WithPageSize(cfg.DHIS2.PageSize),
		WithRateLimit(cfg.DHIS2.RequestsPerSecond),
		WithLogger(logger),
	}
	return New(cfg.DHIS2.BaseURL, authorizer, append(base, opts...)...)
}
