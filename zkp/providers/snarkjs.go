package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/provideplatform/bridge/common"
)

// SnarkJSProofEngineProvider interacts with a remote snarkjs-based
// proof generation service over HTTP. No internal timeout is imposed;
// proof generation can take up to ~10 minutes and timeout policy
// belongs to the caller-supplied context.
type SnarkJSProofEngineProvider struct {
	baseURL string
	client  *http.Client
}

// InitSnarkJSProofEngineProvider initializes and configures a new
// SnarkJSProofEngineProvider instance
func InitSnarkJSProofEngineProvider(baseURL string, client *http.Client) *SnarkJSProofEngineProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &SnarkJSProofEngineProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// GenerateProof submits the padded storage arrays to the remote engine
// and returns its proof and public signals verbatim
func (p *SnarkJSProofEngineProvider) GenerateProof(ctx context.Context, input *ProofInput, onProgress ProgressFunc) (*ProofResponse, error) {
	if onProgress != nil {
		onProgress(fmt.Sprintf("generating Groth16 proof for %d-leaf tree; this may take several minutes", input.TreeSize))
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	uri := fmt.Sprintf("%s/api/v1/prove", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof; %s", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("failed to generate proof; engine returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	response := &ProofResponse{}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proof engine response; %s", err.Error())
	}

	if response.Proof == nil {
		return nil, fmt.Errorf("failed to generate proof; engine response contained no proof")
	}

	if onProgress != nil {
		onProgress("proof generation complete")
	}

	common.Log.Debugf("generated proof with %d public signals for %d-leaf tree", len(response.PublicSignals), input.TreeSize)
	return response, nil
}
