package kabu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the raw REST client. It holds the session token obtained from
// the password once per process; 401 responses invalidate it so the next
// call re-authenticates.
type Client struct {
	baseURL  string
	password string
	exchange int
	token    string
	http     *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:  cfg.APIURL,
		password: cfg.Password,
		exchange: cfg.Exchange,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doRequest(method, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-API-KEY", c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.token = ""
	}
	return resp, nil
}

// EnsureToken authenticates if no session token is held yet.
func (c *Client) EnsureToken() error {
	if c.token != "" {
		return nil
	}
	payload, _ := json.Marshal(tokenRequest{APIPassword: c.password})
	resp, err := c.doRequest("POST", "/token", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("kabu: token request: %w", err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("kabu: decode token response: %w", err)
	}
	if tr.ResultCode != 0 {
		return fmt.Errorf("kabu: token refused (ResultCode=%d)", tr.ResultCode)
	}
	c.token = tr.Token
	return nil
}

// GetDailyBars fetches up to count daily candles for a symbol, oldest first.
func (c *Client) GetDailyBars(symbol string, count int) ([]candleBar, error) {
	if err := c.EnsureToken(); err != nil {
		return nil, err
	}
	resp, err := c.doRequest("GET", fmt.Sprintf("/chart/%s@%d?period=day&count=%d", symbol, c.exchange, count), nil)
	if err != nil {
		return nil, fmt.Errorf("kabu: chart %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	var bars []candleBar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return nil, fmt.Errorf("kabu: decode chart %s: %w", symbol, err)
	}
	return bars, nil
}

// GetPositions fetches the cash-account position list.
func (c *Client) GetPositions() ([]position, error) {
	if err := c.EnsureToken(); err != nil {
		return nil, err
	}
	resp, err := c.doRequest("GET", "/positions?product=1", nil)
	if err != nil {
		return nil, fmt.Errorf("kabu: positions: %w", err)
	}
	defer resp.Body.Close()

	var out []position
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("kabu: decode positions: %w", err)
	}
	return out, nil
}

// GetCash fetches the available stock-account cash.
func (c *Client) GetCash() (float64, error) {
	if err := c.EnsureToken(); err != nil {
		return 0, err
	}
	resp, err := c.doRequest("GET", "/wallet/cash", nil)
	if err != nil {
		return 0, fmt.Errorf("kabu: wallet: %w", err)
	}
	defer resp.Body.Close()

	var cr cashResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return 0, fmt.Errorf("kabu: decode wallet: %w", err)
	}
	return cr.StockAccountWallet, nil
}

// SendOrder submits a limit order. A non-zero Result code from the API is
// an order rejection, not a transport failure.
func (c *Client) SendOrder(req orderRequest) (*orderResponse, error) {
	if err := c.EnsureToken(); err != nil {
		return nil, err
	}
	req.Password = c.password
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("kabu: encode order: %w", err)
	}
	resp, err := c.doRequest("POST", "/sendorder", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("kabu: sendorder: %w", err)
	}
	defer resp.Body.Close()

	var or orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return nil, fmt.Errorf("kabu: decode order response: %w", err)
	}
	return &or, nil
}
