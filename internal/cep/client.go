package cep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"sales-service/internal/util"
)

var (
	ErrInvalidCEP = errors.New("cep: must be 8 digits")
	ErrNotFound   = errors.New("cep: not found")
)

// Cache stores raw lookup responses between requests.
type Cache interface {
	GetCEP(ctx context.Context, cep string) ([]byte, error)
	SetCEP(ctx context.Context, cep string, payload []byte, ttl time.Duration) error
}

// Address is a ViaCEP lookup result.
type Address struct {
	CEP          string `json:"cep"`
	Street       string `json:"logradouro"`
	Complement   string `json:"complemento"`
	Neighborhood string `json:"bairro"`
	City         string `json:"localidade"`
	State        string `json:"uf"`
	Error        bool   `json:"erro,omitempty"`
}

// Client looks up Brazilian postal codes through ViaCEP.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewClient creates a new CEP lookup client.
func NewClient(baseURL string, cache Cache, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// Normalize strips the conventional dash and validates the 8-digit form.
func Normalize(raw string) (string, error) {
	cep := strings.ReplaceAll(strings.TrimSpace(raw), "-", "")
	if len(cep) != 8 {
		return "", ErrInvalidCEP
	}
	for _, r := range cep {
		if r < '0' || r > '9' {
			return "", ErrInvalidCEP
		}
	}
	return cep, nil
}

// Lookup resolves a CEP to an address, serving from cache when possible.
func (c *Client) Lookup(ctx context.Context, raw string) (*Address, error) {
	ctx, span := util.StartSpan(ctx, "cep.Lookup")
	defer span.End()

	cep, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	if cached, err := c.cache.GetCEP(ctx, cep); err == nil && cached != nil {
		var addr Address
		if err := json.Unmarshal(cached, &addr); err == nil {
			util.CEPLookupsTotal.WithLabelValues("cache").Inc()
			return &addr, nil
		}
	}

	url := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, cep)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cep lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cep lookup: status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, err
	}

	var addr Address
	if err := json.Unmarshal(payload, &addr); err != nil {
		return nil, fmt.Errorf("failed to decode cep response: %w", err)
	}
	if addr.Error {
		return nil, ErrNotFound
	}

	util.CEPLookupsTotal.WithLabelValues("upstream").Inc()
	if err := c.cache.SetCEP(ctx, cep, payload, c.cacheTTL); err != nil {
		c.logger.Warn("Failed to cache CEP response", zap.String("cep", cep), zap.Error(err))
	}

	return &addr, nil
}
