package common

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
)

var (
	// Log is the configured logger
	Log *logger.Logger

	// ConsumeNATSStreamingSubscriptions when true, establishes NATS subscriptions in each package init
	ConsumeNATSStreamingSubscriptions bool

	// DefaultArtifactStoreBaseURL is the base URL of the proof artifact store
	DefaultArtifactStoreBaseURL string

	// DefaultProofEngineBaseURL is the base URL of the remote proof generation service
	DefaultProofEngineBaseURL string

	// DefaultProofEngineProvider selects the configured proof engine provider
	DefaultProofEngineProvider string

	// DefaultJSONRPCURL is the url of the bridge chain JSON-RPC endpoint
	DefaultJSONRPCURL string

	// DefaultBridgeContractAddress is the address of the deployed channel bridge contract
	DefaultBridgeContractAddress string

	// DefaultChainID is the EIP-155 chain id used when signing bridge transactions
	DefaultChainID int64

	// DefaultBridgeSignerKey is the hex private key used to sign close-channel transactions
	DefaultBridgeSignerKey string
)

func init() {
	godotenv.Load()

	requireLogger()
	requireEnvironment()
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("bridge", lvl, endpoint)
}

func requireEnvironment() {
	ConsumeNATSStreamingSubscriptions = strings.ToLower(os.Getenv("CONSUME_NATS_STREAMING_SUBSCRIPTIONS")) == "true"

	DefaultArtifactStoreBaseURL = os.Getenv("ARTIFACT_STORE_BASE_URL")
	DefaultProofEngineBaseURL = os.Getenv("PROOF_ENGINE_BASE_URL")

	DefaultProofEngineProvider = os.Getenv("PROOF_ENGINE_PROVIDER")
	if DefaultProofEngineProvider == "" {
		DefaultProofEngineProvider = "snarkjs"
	}

	DefaultJSONRPCURL = os.Getenv("JSON_RPC_URL")
	DefaultBridgeContractAddress = os.Getenv("BRIDGE_CONTRACT_ADDRESS")
	DefaultBridgeSignerKey = os.Getenv("BRIDGE_SIGNER_PRIVATE_KEY")

	if os.Getenv("CHAIN_ID") != "" {
		chainID, err := strconv.ParseInt(os.Getenv("CHAIN_ID"), 10, 64)
		if err != nil {
			Log.Panicf("failed to parse CHAIN_ID from environment; %s", err.Error())
		}
		DefaultChainID = chainID
	}
}
