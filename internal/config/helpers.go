package config

import (
	"fmt"

	"genetix/pkg/exchange"
)

// DefaultProvider returns the configured default exchange provider settings.
func (c *Config) DefaultProvider() (string, *exchange.ProviderConfig, error) {
	if c.Exchange.Value == nil {
		return "", nil, fmt.Errorf("config: exchange section is required")
	}
	name := c.Exchange.Value.Default
	p, ok := c.Exchange.Value.Providers[name]
	if !ok || p == nil {
		return "", nil, fmt.Errorf("config: default exchange provider %q not defined", name)
	}
	return name, p, nil
}
