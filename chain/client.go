package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btclog"
	"golang.org/x/time/rate"
)

// ClientConfig holds configuration for the Esplora-compatible REST client.
type ClientConfig struct {
	// BaseURL is the base URL of the Esplora-compatible API, e.g.
	// "https://blockstream.info/api".
	BaseURL string

	// RateLimit is the number of requests per second allowed.
	// Default: 10
	RateLimit int

	// Timeout is the HTTP request timeout. Default: 30s, per spec.md §5.
	Timeout time.Duration

	// RetryAttempts is the number of retry attempts for transient
	// failures. Default: 3.
	RetryAttempts int

	// RetryDelay is the base delay between retry attempts. Default: 1s.
	RetryDelay time.Duration

	Logger btclog.Logger
}

// DefaultClientConfig returns a default configuration for the given base URL.
func DefaultClientConfig(baseURL string) *ClientConfig {
	return &ClientConfig{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		RateLimit:     10,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		Logger:        btclog.Disabled,
	}
}

// Client is a rate-limited, retrying HTTP client for an Esplora-compatible
// Bitcoin REST API.
type Client struct {
	cfg         *ClientConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a new Client.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig("https://blockstream.info/api")
	}
	if cfg.Logger == nil {
		cfg.Logger = btclog.Disabled
	}

	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
	}
}

// doRequest performs an HTTP request with rate limiting and retries. A 404
// response maps to ErrNotFound without retrying; other failures retry up to
// cfg.RetryAttempts before surfacing ErrTransient.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.cfg.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", ErrTransient, err)
		}

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("%w: building request: %v", ErrInvalidResponse, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "text/plain")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrTransient, err)
			c.cfg.Logger.Debugf("request %s %s failed (attempt %d): %v", method, path, attempt, err)
			c.backoff(attempt)
			continue
		}

		respBody, err := readAndClose(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading response: %v", ErrInvalidResponse, err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return respBody, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: rate limited (429)", ErrTransient)
			time.Sleep(c.cfg.RetryDelay * time.Duration(attempt+1) * 2)
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: server error %d: %s", ErrTransient, resp.StatusCode, respBody)
			c.backoff(attempt)
			continue
		default:
			return nil, fmt.Errorf("%w: unexpected status %d: %s", ErrInvalidResponse, resp.StatusCode, respBody)
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.cfg.RetryAttempts+1, lastErr)
}

func (c *Client) backoff(attempt int) {
	if attempt < c.cfg.RetryAttempts {
		time.Sleep(c.cfg.RetryDelay * time.Duration(attempt+1))
	}
}

func readAndClose(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	return io.ReadAll(rc)
}

// GetTipHeight fetches GET /blocks/tip/height.
func (c *Client) GetTipHeight(ctx context.Context) (uint64, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/blocks/tip/height", nil)
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing tip height: %v", ErrInvalidResponse, err)
	}
	return height, nil
}

// GetAddressUTXOs fetches GET /address/{addr}/utxo.
func (c *Client) GetAddressUTXOs(ctx context.Context, addr string) ([]UTXOResponse, error) {
	path := fmt.Sprintf("/address/%s/utxo", addr)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var utxos []UTXOResponse
	if err := json.Unmarshal(body, &utxos); err != nil {
		return nil, fmt.Errorf("%w: parsing utxos: %v", ErrInvalidResponse, err)
	}
	return utxos, nil
}

// GetTxStatus fetches GET /tx/{txid}/status.
func (c *Client) GetTxStatus(ctx context.Context, txid string) (*TxStatusResponse, error) {
	path := fmt.Sprintf("/tx/%s/status", txid)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var status TxStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("%w: parsing tx status: %v", ErrInvalidResponse, err)
	}
	return &status, nil
}

// GetTxHex fetches GET /tx/{txid}/hex.
func (c *Client) GetTxHex(ctx context.Context, txid string) (string, error) {
	path := fmt.Sprintf("/tx/%s/hex", txid)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// GetMerkleProof fetches GET /tx/{txid}/merkle-proof.
func (c *Client) GetMerkleProof(ctx context.Context, txid string) (*MerkleProofResponse, error) {
	path := fmt.Sprintf("/tx/%s/merkle-proof", txid)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var proof MerkleProofResponse
	if err := json.Unmarshal(body, &proof); err != nil {
		return nil, fmt.Errorf("%w: parsing merkle proof: %v", ErrInvalidResponse, err)
	}
	return &proof, nil
}

// GetBlockHashAtHeight fetches GET /block-height/{h}.
func (c *Client) GetBlockHashAtHeight(ctx context.Context, height int64) (string, error) {
	path := fmt.Sprintf("/block-height/%d", height)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// GetBlockHeaderHex fetches GET /block/{hash}/header.
func (c *Client) GetBlockHeaderHex(ctx context.Context, blockHash string) (string, error) {
	path := fmt.Sprintf("/block/%s/header", blockHash)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// BroadcastTx posts POST /tx with the raw transaction hex as the body and
// returns the resulting txid.
func (c *Client) BroadcastTx(ctx context.Context, rawHex string) (string, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/tx", []byte(rawHex))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// GetFeeEstimates fetches GET /v1/fees/recommended.
func (c *Client) GetFeeEstimates(ctx context.Context) (*FeeEstimates, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/fees/recommended", nil)
	if err != nil {
		return nil, err
	}
	var fees FeeEstimates
	if err := json.Unmarshal(body, &fees); err != nil {
		return nil, fmt.Errorf("%w: parsing fee estimates: %v", ErrInvalidResponse, err)
	}
	return &fees, nil
}
