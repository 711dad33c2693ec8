package providers

import (
	"github.com/provideplatform/bridge/common"
)

// ProofEngineProviderFactory resolves the configured proof engine
// provider; returns nil for unknown providers
func ProofEngineProviderFactory(provider string) ProofEngineProvider {
	switch provider {
	case ProofEngineProviderSnarkJS:
		return InitSnarkJSProofEngineProvider(common.DefaultProofEngineBaseURL, nil)
	case ProofEngineProviderGnark:
		return InitGnarkProofEngineProvider()
	default:
		common.Log.Warningf("failed to initialize proof engine provider; unknown provider: %s", provider)
	}

	return nil
}
