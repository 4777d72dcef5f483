package frost

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btclog"
)

// HTTPSignerClientConfig configures an HTTPSignerClient.
type HTTPSignerClientConfig struct {
	// BaseURL is the signer node's HTTP base, e.g. "http://signer-2:8091".
	BaseURL string

	SignerID Identifier

	Timeout time.Duration

	Logger btclog.Logger
}

// HTTPSignerClient implements frost.SignerClient over the threshold
// signer HTTP API described in spec.md §6 (GET /health, POST /round1,
// POST /round2). One instance represents the coordinator's view of one
// remote signer node.
type HTTPSignerClient struct {
	cfg        HTTPSignerClientConfig
	httpClient *http.Client
	log        btclog.Logger
}

// NewHTTPSignerClient constructs an HTTPSignerClient.
func NewHTTPSignerClient(cfg HTTPSignerClientConfig) *HTTPSignerClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = btclog.Disabled
	}
	return &HTTPSignerClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        cfg.Logger,
	}
}

var _ SignerClient = (*HTTPSignerClient)(nil)

// ID returns the signer's configured FROST identifier.
func (h *HTTPSignerClient) ID() Identifier {
	return h.cfg.SignerID
}

type healthResponse struct {
	Status    string `json:"status"`
	SignerID  string `json:"signer_id"`
	KeyLoaded bool   `json:"key_loaded"`
}

// Healthy reports whether the signer is reachable and has a key loaded,
// per GET /health.
func (h *HTTPSignerClient) Healthy(ctx context.Context) bool {
	body, err := h.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		h.log.Debugf("signer %d unhealthy: %v", h.cfg.SignerID, err)
		return false
	}
	var resp healthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	return resp.Status == "ok" && resp.KeyLoaded
}

type round1Request struct {
	SessionID string `json:"session_id"`
	Sighash   string `json:"sighash"`
	Tweak     string `json:"tweak,omitempty"`
}

type round1Response struct {
	Commitment string `json:"commitment"`
	SignerID   string `json:"signer_id"`
	Identifier string `json:"frost_identifier"`
}

// SignRound1 performs POST /round1 and decodes the returned commitment.
func (h *HTTPSignerClient) SignRound1(ctx context.Context, sessionID string, sighash [32]byte, tweak *[32]byte) (Commitment, Identifier, error) {
	req := round1Request{
		SessionID: sessionID,
		Sighash:   hex.EncodeToString(sighash[:]),
	}
	if tweak != nil {
		req.Tweak = hex.EncodeToString(tweak[:])
	}

	body, err := h.doJSON(ctx, "/round1", req)
	if err != nil {
		return Commitment{}, 0, err
	}

	var resp round1Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Commitment{}, 0, fmt.Errorf("%w: parsing round1 response: %v", ErrSignerHTTP, err)
	}

	commitment, err := decodeCommitment(resp.Commitment)
	if err != nil {
		return Commitment{}, 0, err
	}

	return commitment, h.cfg.SignerID, nil
}

type round2Request struct {
	SessionID      string            `json:"session_id"`
	Sighash        string            `json:"sighash"`
	Tweak          string            `json:"tweak,omitempty"`
	Commitments    map[string]string `json:"commitments"`
	IdentifierMap  map[string]string `json:"identifier_map"`
}

type round2Response struct {
	SignatureShare string `json:"signature_share"`
	SignerID       string `json:"signer_id"`
}

// SignRound2 performs POST /round2 and decodes the returned signature
// share.
func (h *HTTPSignerClient) SignRound2(ctx context.Context, sessionID string, sighash [32]byte, tweak *[32]byte, commitments map[Identifier]Commitment, identifiers []Identifier) (scalar, error) {
	req := round2Request{
		SessionID:     sessionID,
		Sighash:       hex.EncodeToString(sighash[:]),
		Commitments:   make(map[string]string, len(commitments)),
		IdentifierMap: make(map[string]string, len(identifiers)),
	}
	if tweak != nil {
		req.Tweak = hex.EncodeToString(tweak[:])
	}
	for id, c := range commitments {
		req.Commitments[strconv.Itoa(int(id))] = hex.EncodeToString(c.Bytes())
	}
	for _, id := range identifiers {
		req.IdentifierMap[strconv.Itoa(int(id))] = strconv.Itoa(int(id))
	}

	body, err := h.doJSON(ctx, "/round2", req)
	if err != nil {
		return scalar{}, err
	}

	var resp round2Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return scalar{}, fmt.Errorf("%w: parsing round2 response: %v", ErrSignerHTTP, err)
	}

	shareBytes, err := hex.DecodeString(resp.SignatureShare)
	if err != nil || len(shareBytes) != 32 {
		return scalar{}, fmt.Errorf("%w: malformed signature_share", ErrSignerHTTP)
	}

	return scalarFromBytes(shareBytes), nil
}

func decodeCommitment(hexStr string) (Commitment, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil || len(raw) != 64 {
		return Commitment{}, fmt.Errorf("%w: malformed commitment", ErrSignerHTTP)
	}

	d, err := xOnlyToPoint(raw[:32])
	if err != nil {
		return Commitment{}, fmt.Errorf("%w: commitment D: %v", ErrSignerHTTP, err)
	}
	e, err := xOnlyToPoint(raw[32:])
	if err != nil {
		return Commitment{}, fmt.Errorf("%w: commitment E: %v", ErrSignerHTTP, err)
	}

	return Commitment{D: d, E: e}, nil
}

func (h *HTTPSignerClient) doJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrSignerHTTP, err)
	}
	return h.do(ctx, http.MethodPost, path, body)
}

func (h *HTTPSignerClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrSignerHTTP, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignerHTTP, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrSignerHTTP, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSignerHTTP, resp.StatusCode, respBody)
	}

	return respBody, nil
}
