// internal/gateway/apiclient/client.go
//
// Тонкий HTTP-клиент к read-сервису purchase-api. Гейтвей не ходит в
// хранилище напрямую: чтение покупок всегда проксируется сюда.
package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client обращается к purchase-api.
type Client struct {
	baseURL string
	http    *http.Client
}

// New создаёт Client. baseURL — адрес purchase-api без завершающего «/».
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// PurchasesByUser возвращает сырое JSON-тело ответа purchase-api:
// декодировать его гейтвею незачем, тело отдаётся клиенту как есть.
func (c *Client) PurchasesByUser(ctx context.Context, userID string) ([]byte, error) {
	u := fmt.Sprintf("%s/purchases?userId=%s", c.baseURL, url.QueryEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: purchase-api unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("apiclient: purchase-api returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
