package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validation errors returned by [ClientConfig.validate].
var (
	ErrInvalidLocalImmer = errors.New("local immer must be a valid origin or hostname")
	ErrStorageDSNMissing = errors.New("storage DSN required when durable storage is enabled")
	ErrBackoffBounds     = errors.New("reconnect minimum must not exceed reconnect maximum")
)

func (c *ClientConfig) validate() error {
	if raw := strings.TrimSpace(c.Immer.LocalImmer); raw != "" {
		normalized, err := NormalizeOrigin(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidLocalImmer, err)
		}
		c.Immer.LocalImmer = normalized
	}

	if c.Immer.AllowStorage && strings.TrimSpace(c.Storage.DSN) == "" {
		return ErrStorageDSNMissing
	}

	if c.Streaming.ReconnectMin > c.Streaming.ReconnectMax {
		return ErrBackoffBounds
	}

	return nil
}

// NormalizeOrigin parses a host or URL string into a canonical
// scheme://host origin. A bare hostname gets the https scheme.
func NormalizeOrigin(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return u.Scheme + "://" + u.Host, nil
}
