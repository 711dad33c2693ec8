package providers

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnarkJSGenerateProof(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/prove", r.URL.Path)

		var input ProofInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, uint64(16), input.TreeSize)
		assert.Len(t, input.StorageKeys, 16)

		json.NewEncoder(w).Encode(&ProofResponse{
			Proof: &Proof{
				PA: []string{"1", "2", "3", "4"},
				PB: []string{"1", "2", "3", "4", "5", "6", "7", "8"},
				PC: []string{"1", "2", "3", "4"},
			},
			PublicSignals: make([]string, 33),
		})
	}))
	defer srv.Close()

	input := &ProofInput{
		StorageKeys:   make([]string, 16),
		StorageValues: make([]string, 16),
		TreeSize:      16,
	}

	var progress []string
	provider := InitSnarkJSProofEngineProvider(srv.URL, nil)
	resp, err := provider.GenerateProof(context.Background(), input, func(status string) {
		progress = append(progress, status)
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Proof)
	assert.Len(t, resp.Proof.PA, 4)
	assert.Len(t, resp.Proof.PB, 8)
	assert.Len(t, resp.Proof.PC, 4)
	assert.Len(t, resp.PublicSignals, 33)
	assert.NotEmpty(t, progress)
}

func TestSnarkJSGenerateProofEngineFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "constraint system unsatisfied", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	provider := InitSnarkJSProofEngineProvider(srv.URL, nil)
	_, err := provider.GenerateProof(context.Background(), &ProofInput{TreeSize: 16}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "constraint system unsatisfied")
}

func TestSnarkJSGenerateProofRejectsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"publicSignals": []}`))
	}))
	defer srv.Close()

	provider := InitSnarkJSProofEngineProvider(srv.URL, nil)
	_, err := provider.GenerateProof(context.Background(), &ProofInput{TreeSize: 16}, nil)
	assert.Error(t, err)
}

func TestSplitLimbs(t *testing.T) {
	limbs := splitLimbs(big.NewInt(42))
	assert.Equal(t, []string{"0", "42"}, limbs)

	v, ok := new(big.Int).SetString("0x1000000000000000000000000000000002a", 0)
	require.True(t, ok)
	limbs = splitLimbs(v)
	assert.Equal(t, []string{"16", "42"}, limbs)
}
