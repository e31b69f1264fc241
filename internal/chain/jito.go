package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Compile-time interface check.
var _ domain.BundleSender = (*JitoClient)(nil)

const bundlesPath = "/api/v1/bundles"

// JitoClient submits bundles to a Jito block engine over JSON-RPC.
type JitoClient struct {
	baseURL     string
	tipAccounts []solana.PublicKey
	httpClient  *http.Client
}

// NewJitoClient creates a JitoClient. tipAccounts must contain at least one
// valid base58 public key.
func NewJitoClient(baseURL string, tipAccounts []string) (*JitoClient, error) {
	if len(tipAccounts) == 0 {
		return nil, errors.New("chain: jito: no tip accounts configured")
	}
	keys := make([]solana.PublicKey, 0, len(tipAccounts))
	for _, s := range tipAccounts {
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("chain: jito: tip account %q: %w", s, err)
		}
		keys = append(keys, pk)
	}
	return &JitoClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		tipAccounts: keys,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// TipAccount returns one of the configured tip accounts at random, spreading
// write-lock contention across them.
func (j *JitoClient) TipAccount() solana.PublicKey {
	return j.tipAccounts[rand.IntN(len(j.tipAccounts))]
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendBundle submits base64-encoded transactions as one atomic bundle and
// returns the bundle id.
func (j *JitoClient) SendBundle(ctx context.Context, rawTxs [][]byte) (string, error) {
	if len(rawTxs) == 0 {
		return "", errors.New("chain: jito: empty bundle")
	}
	encoded := make([]string, len(rawTxs))
	for i, tx := range rawTxs {
		encoded[i] = base64.StdEncoding.EncodeToString(tx)
	}

	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  []any{encoded, map[string]string{"encoding": "base64"}},
	})
	if err != nil {
		return "", fmt.Errorf("chain: jito: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+bundlesPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chain: jito: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chain: jito: send bundle: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("chain: jito: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("chain: jito: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chain: jito: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out jsonRPCResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("chain: jito: decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("chain: jito: rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	var bundleID string
	if err := json.Unmarshal(out.Result, &bundleID); err != nil {
		return "", fmt.Errorf("chain: jito: decode bundle id: %w", err)
	}
	return bundleID, nil
}
