package aster

import (
	"strings"
	"time"
)

const DefaultBaseURL = "https://fapi.asterdex.com"

type Config struct {
	BaseURL     string
	APIKey      string
	APISecret   string
	HTTPTimeout time.Duration
	RecvWindow  time.Duration

	ProxyEnabled bool
	ProxyURL     string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.RecvWindow <= 0 {
		out.RecvWindow = 5 * time.Second
	}
	out.APIKey = strings.TrimSpace(out.APIKey)
	out.APISecret = strings.TrimSpace(out.APISecret)
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	return out
}
