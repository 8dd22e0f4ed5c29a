package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sales-service/internal/util"
)

// ErrNoConfirmation is returned when the ERP never produced a sales-order
// code before the polling deadline. Callers fall back to the locally
// allocated code.
var ErrNoConfirmation = errors.New("erp: no confirmation code before deadline")

// APIError is a non-2xx response from the Hiper API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hiper api: status %d: %s", e.Status, e.Body)
}

// TokenCache stores the bearer token between requests.
type TokenCache interface {
	GetERPToken(ctx context.Context) (string, error)
	SetERPToken(ctx context.Context, token string, ttl time.Duration) error
}

// Client wraps the Hiper ERP REST API.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	cache     TokenCache
	logger    *zap.Logger

	mu sync.Mutex // serializes token refresh
}

// NewClient creates a new Hiper API client.
func NewClient(baseURL, secretKey string, cache TokenCache) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 30 * time.Second},
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// Hiper tokens live for an hour; refresh with slack.
const tokenTTL = 50 * time.Minute

type tokenResponse struct {
	Token string `json:"token"`
}

// Token returns a valid bearer token, refreshing through the auth
// endpoint on cache miss. Refreshes are serialized so a burst of
// requests triggers a single upstream call.
func (c *Client) Token(ctx context.Context) (string, error) {
	if token, err := c.cache.GetERPToken(ctx); err == nil && token != "" {
		return token, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited on the lock.
	if token, err := c.cache.GetERPToken(ctx); err == nil && token != "" {
		return token, nil
	}

	url := fmt.Sprintf("%s/auth/gerar-token/%s", c.baseURL, c.secretKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	util.ERPTokenRefreshTotal.Inc()
	if err := c.cache.SetERPToken(ctx, tr.Token, tokenTTL); err != nil {
		c.logger.Warn("Failed to cache ERP token", zap.Error(err))
	}

	return tr.Token, nil
}

// Product is a catalog entry as the ERP reports it.
type Product struct {
	ID       string          `json:"codigoDoProduto"`
	Name     string          `json:"nome"`
	Price    decimal.Decimal `json:"preco"`
	Stock    int             `json:"quantidadeEmEstoque"`
	ImageURL string          `json:"imagem,omitempty"`
}

type productsResponse struct {
	Products []Product `json:"produtos"`
}

// Products lists the catalog from the ERP synchronization endpoint. A
// non-empty priceListID scopes the listing to that price list.
func (c *Client) Products(ctx context.Context, priceListID string) ([]Product, error) {
	ctx, span := util.StartSpan(ctx, "erp.Products")
	defer span.End()

	url := fmt.Sprintf("%s/produtos/pontoDeSincronizacao", c.baseURL)
	if priceListID != "" {
		url += "?listaDePreco=" + neturl.QueryEscape(priceListID)
	}
	var pr productsResponse
	if err := c.getJSON(ctx, url, &pr); err != nil {
		return nil, err
	}
	return pr.Products, nil
}

// OrderItem is one line of an ERP sales order.
type OrderItem struct {
	ProductID string          `json:"produtoId"`
	Quantity  int             `json:"quantidade"`
	UnitPrice decimal.Decimal `json:"precoUnitarioLiquido"`
}

// SalesOrder is the payload the ERP expects for a new sales order.
type SalesOrder struct {
	ClientDocument string          `json:"documentoDoCliente"`
	ClientName     string          `json:"nomeDoCliente"`
	Items          []OrderItem     `json:"itens"`
	TotalValue     decimal.Decimal `json:"valorTotal"`
	Observations   string          `json:"observacoes,omitempty"`
}

type submitResponse struct {
	ID string `json:"id"`
}

// SubmitOrder posts a sales order and returns the ERP-side id used for
// event polling.
func (c *Client) SubmitOrder(ctx context.Context, order *SalesOrder) (string, error) {
	ctx, span := util.StartSpan(ctx, "erp.SubmitOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ERPSubmitLatency.Observe(time.Since(start).Seconds())
	}()

	token, err := c.Token(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order: %w", err)
	}

	url := fmt.Sprintf("%s/pedido-de-venda/", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("order submission failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}

	return sr.ID, nil
}

type eventsResponse struct {
	SalesOrderCode string `json:"codigoDoPedidoDeVenda"`
}

// ConfirmationCode polls the ERP event endpoint until it reports the
// sales-order code or ctx expires. Backoff starts at 500ms and doubles
// up to 4s between attempts.
func (c *Client) ConfirmationCode(ctx context.Context, erpID string) (string, error) {
	ctx, span := util.StartSpan(ctx, "erp.ConfirmationCode")
	defer span.End()

	url := fmt.Sprintf("%s/pedido-de-venda/eventos/%s", c.baseURL, erpID)
	backoff := 500 * time.Millisecond
	const maxBackoff = 4 * time.Second

	for {
		util.ERPSyncAttemptsTotal.Inc()

		var er eventsResponse
		err := c.getJSON(ctx, url, &er)
		if err == nil && er.SalesOrderCode != "" {
			return er.SalesOrderCode, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ErrNoConfirmation
			}
			c.logger.Warn("ERP event poll failed",
				zap.String("erp_id", erpID),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return "", ErrNoConfirmation
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
