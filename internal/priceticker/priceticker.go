// Package priceticker fetches the oracle's price snapshot over HTTP:
// a resty.Client wrapped in a small struct with the retry/timeout
// policy configured once at construction.
package priceticker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tourmii/gmxperp/internal/valuator"
)

// Quote mirrors the ticker endpoint's wire shape: prices arrive as
// numeric strings.
type Quote struct {
	TokenSymbol string `json:"tokenSymbol"`
	MinPrice    string `json:"minPrice"`
	MaxPrice    string `json:"maxPrice"`
}

// Client is a GET-only client for the oracle's ticker endpoint.
type Client struct {
	http *resty.Client
}

// New builds a Client pointed at baseURL, retrying on transport
// errors and 5xx responses.
func New(baseURL string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	return &Client{http: http}
}

// Fetch implements valuator.Ticker. A non-200 response is a transient
// error; the caller skips this tick.
func (c *Client) Fetch(ctx context.Context) ([]valuator.TickerQuote, error) {
	var quotes []Quote
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&quotes).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price ticker: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("price ticker returned status %d", resp.StatusCode())
	}

	out := make([]valuator.TickerQuote, 0, len(quotes))
	for _, q := range quotes {
		min, err := strconv.ParseFloat(q.MinPrice, 64)
		if err != nil {
			continue
		}
		max, err := strconv.ParseFloat(q.MaxPrice, 64)
		if err != nil {
			continue
		}
		out = append(out, valuator.TickerQuote{TokenSymbol: q.TokenSymbol, MinPrice: min, MaxPrice: max})
	}
	return out, nil
}
