// Package hedgeapi fetches the target hedge allocation from the remote hedge
// service. The service answers, for a holding of the base asset, how much of
// each underlying should be held short.
package hedgeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/logger"
	"hedgebot/internal/pkg/circuit"
	"hedgebot/internal/position"
)

const (
	positionsPath  = "/api/v1/hedge-positions"
	userAgent      = "hedgebot/1.0"
	maxBodyBytes   = 1 << 20
	breakerTimeout = time.Minute
)

// ErrAPI is a well-formed error answer from the service. It is not retried.
var ErrAPI = errors.New("hedge api error")

type Config struct {
	BaseURL    string
	LicenseKey string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	return c
}

type Client struct {
	cfg     Config
	http    *http.Client
	schema  *jsonschema.Schema
	breaker *circuit.CircuitBreaker
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ position.TargetSource = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	final := cfg.withDefaults()
	if final.BaseURL == "" {
		return nil, fmt.Errorf("hedge api url is required: %w", exchange.ErrConfiguration)
	}
	if _, err := url.Parse(final.BaseURL); err != nil {
		return nil, fmt.Errorf("hedge api url %q: %w", final.BaseURL, exchange.ErrConfiguration)
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile hedge schema: %w", err)
	}
	return &Client{
		cfg:     final,
		http:    &http.Client{Timeout: final.Timeout},
		schema:  schema,
		breaker: circuit.NewCircuitBreaker("hedge-api", final.Retries*2, breakerTimeout),
		sleep:   sleepContext,
	}, nil
}

// Targets asks for the hedge of baseAmount units, retrying transport and
// server failures. A zero or negative amount needs no hedge.
func (c *Client) Targets(ctx context.Context, baseAmount decimal.Decimal) (map[string]position.TargetPosition, error) {
	if !baseAmount.IsPositive() {
		logger.Warnf("hedge api: base amount %s, nothing to hedge", baseAmount)
		return map[string]position.TargetPosition{}, nil
	}
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		var out map[string]position.TargetPosition
		err := c.breaker.Execute(func() error {
			var ferr error
			out, ferr = c.fetch(ctx, baseAmount)
			return ferr
		})
		if err == nil {
			logger.Infof("hedge api: targets for %s -> %d symbols", baseAmount, len(out))
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrAPI) || errors.Is(err, circuit.ErrOpen) || ctx.Err() != nil {
			break
		}
		logger.Warnf("hedge api request failed (attempt %d/%d): %v", attempt, c.cfg.Retries, err)
		if attempt < c.cfg.Retries {
			if serr := c.sleep(ctx, c.cfg.RetryDelay); serr != nil {
				return nil, serr
			}
		}
	}
	logger.Errorf("hedge api request failed after %d attempts: %v", c.cfg.Retries, lastErr)
	return nil, lastErr
}

func (c *Client) fetch(ctx context.Context, baseAmount decimal.Decimal) (map[string]position.TargetPosition, error) {
	q := url.Values{}
	q.Set("jlp_amount", baseAmount.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+positionsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.cfg.LicenseKey != "" {
		req.Header.Set("X-License-Key", c.cfg.LicenseKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", exchange.ErrNetwork, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", exchange.ErrNetwork, err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", exchange.ErrNetwork, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("hedge api: status %d, invalid json", resp.StatusCode)
	}
	parsed := gjson.ParseBytes(body)
	if resp.StatusCode >= 400 || !parsed.Get("success").Bool() {
		msg := parsed.Get("error.message").String()
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrAPI, msg)
	}
	var doc any
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("hedge api: decode: %w", err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: unexpected payload: %v", ErrAPI, err)
	}
	return parsePositions(parsed.Get("data.hedge_positions"))
}

func parsePositions(node gjson.Result) (map[string]position.TargetPosition, error) {
	out := make(map[string]position.TargetPosition)
	var perr error
	node.ForEach(func(key, value gjson.Result) bool {
		sym := strings.ToUpper(strings.TrimSpace(key.String()))
		t := position.TargetPosition{Symbol: sym}
		fields := []struct {
			name string
			dst  *decimal.Decimal
		}{
			{"amount", &t.Amount},
			{"value_usd", &t.ValueUSD},
			{"price", &t.Price},
			{"weight", &t.Weight},
		}
		for _, f := range fields {
			v := value.Get(f.name)
			if !v.Exists() {
				*f.dst = decimal.Zero
				continue
			}
			d, err := toDecimal(v)
			if err != nil {
				perr = fmt.Errorf("%s.%s: %w", sym, f.name, err)
				return false
			}
			*f.dst = d
		}
		out[sym] = t
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

// toDecimal keeps the exact digits the service sent.
func toDecimal(v gjson.Result) (decimal.Decimal, error) {
	switch v.Type {
	case gjson.Number:
		return decimal.NewFromString(v.Raw)
	case gjson.String:
		return decimal.NewFromString(strings.TrimSpace(v.String()))
	default:
		return decimal.Zero, fmt.Errorf("not a number: %s", v.Raw)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
