// Package upstream reads affiliate data from the remote bg-ref backend.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"bgref/internal/domain"
	"bgref/pkg/errors"
)

const maxResponseBytes = 4 << 20

// TokenFunc extracts the caller's bearer token from a request context.
type TokenFunc func(ctx context.Context) (string, bool)

type Client struct {
	baseURL string
	client  *http.Client
	token   TokenFunc
}

func NewClient(baseURL string, timeout time.Duration, token TokenFunc) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		token: token,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token, ok := c.token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
	case http.StatusForbidden:
		return errors.ErrNotBgAffiliate
	case http.StatusNotFound:
		return errors.ErrWalletNotFound
	case http.StatusConflict:
		return errors.ErrCommissionIncrease
	default:
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// The remote backend identifies the wallet from the bearer token, so
// walletID is not sent.

func (c *Client) DownlineRecords(ctx context.Context, walletID int64) ([]domain.MemberRecord, error) {
	var out struct {
		DetailedMembers []domain.MemberRecord `json:"detailedMembers"`
	}
	if err := c.do(ctx, http.MethodGet, "/bg-ref/downline-stats", nil, &out); err != nil {
		return nil, err
	}
	if err := domain.ValidateRecords(out.DetailedMembers); err != nil {
		return nil, errors.Wrap(err, "upstream returned invalid records")
	}
	return out.DetailedMembers, nil
}

func (c *Client) CommissionHistory(ctx context.Context, walletID int64) ([]domain.CommissionEntry, error) {
	var out []domain.CommissionEntry
	if err := c.do(ctx, http.MethodGet, "/bg-ref/commission-history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context, walletID int64) (*domain.AffiliateStatus, error) {
	out := &domain.AffiliateStatus{}
	if err := c.do(ctx, http.MethodGet, "/bg-ref/my-bg-affiliate-status", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context, walletID int64) (*domain.AffiliateStats, error) {
	out := &domain.AffiliateStats{}
	if err := c.do(ctx, http.MethodGet, "/bg-ref/bg-affiliate-stats", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Tree(ctx context.Context, walletID int64) (*domain.AffiliateTree, error) {
	out := &domain.AffiliateTree{}
	if err := c.do(ctx, http.MethodGet, "/bg-ref/trees", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateCommissionPercent(ctx context.Context, fromWalletID, toWalletID int64, percent decimal.Decimal) error {
	body := map[string]interface{}{
		"toWalletId": toWalletID,
		"newPercent": percent,
	}
	return c.do(ctx, http.MethodPut, "/bg-ref/nodes/commission", body, nil)
}
