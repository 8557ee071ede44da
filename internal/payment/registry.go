package payment

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront-service/config"
	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
)

// Registry holds the enabled gateways
type Registry struct {
	gateways    map[string]Gateway
	defaultName string
}

func NewRegistry(defaultName string, gateways ...Gateway) (*Registry, error) {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways)), defaultName: defaultName}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	if _, ok := r.gateways[defaultName]; !ok {
		return nil, fmt.Errorf("default payment gateway %q is not enabled", defaultName)
	}
	return r, nil
}

// NewRegistryFromConfig builds the gateways listed in PAYMENT_GATEWAYS
func NewRegistryFromConfig(cfg config.PaymentConfig) (*Registry, error) {
	httpClient := &http.Client{Timeout: 15 * time.Second}

	var gateways []Gateway
	for _, name := range cfg.Gateways {
		switch strings.ToLower(name) {
		case models.PaymentMethodStripe:
			gateways = append(gateways, NewStripeGateway(cfg.Stripe, cfg.AppURL, nil))
		case models.PaymentMethodBlik:
			gateways = append(gateways, NewBlikGateway(cfg.Blik, cfg.AppURL, httpClient))
		default:
			return nil, fmt.Errorf("unknown payment gateway %q", name)
		}
	}
	return NewRegistry(cfg.DefaultGateway, gateways...)
}

// Get returns the named gateway, or the default one for an empty name
func (r *Registry) Get(name string) (Gateway, error) {
	if name == "" {
		name = r.defaultName
	}
	g, ok := r.gateways[strings.ToLower(name)]
	if !ok {
		return nil, apperr.Validation("payment method %q is not available", name)
	}
	return g, nil
}

func (r *Registry) Default() string {
	return r.defaultName
}
