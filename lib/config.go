package lib

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/units"
)

/* This file implements the 'user controlled' global configuration of each module of the node */

const (
	// FILE NAMES in the 'data directory'
	ConfigFilePath  = "config.json"        // the file path for the node configuration
	ValKeyPath      = "validator_key.json" // the file path for the node's private key
	GenesisFilePath = "genesis.json"       // the file path for the genesis (first block)
)

// Config is the structure of the user configuration options for an auric node
type Config struct {
	MainConfig      // main options spanning over all modules
	ConsensusConfig // bft options
	LedgerConfig    // staking ledger options
	MempoolConfig   // mempool options
	StoreConfig     // block store options
	RPCConfig       // rpc API options
	MetricsConfig   // telemetry options
}

// DefaultConfig() returns a Config with developer set options
func DefaultConfig() Config {
	return Config{
		MainConfig:      DefaultMainConfig(),
		ConsensusConfig: DefaultConsensusConfig(),
		LedgerConfig:    DefaultLedgerConfig(),
		MempoolConfig:   DefaultMempoolConfig(),
		StoreConfig:     DefaultStoreConfig(),
		RPCConfig:       DefaultRPCConfig(),
		MetricsConfig:   DefaultMetricsConfig(),
	}
}

// MAIN CONFIG BELOW

type MainConfig struct {
	LogLevel    string `json:"logLevel"`    // any level includes the levels above it: debug < info < warning < error
	ChainId     string `json:"chainId"`     // the identifier of this chain, mixed into every sign-bytes payload
	DataDirPath string `json:"dataDirPath"` // the directory holding the config, keys, genesis, and logs
}

// DefaultMainConfig() sets log level to 'info'
func DefaultMainConfig() MainConfig {
	return MainConfig{
		LogLevel:    "info",
		ChainId:     "auric-1",
		DataDirPath: DefaultDataDirPath(),
	}
}

// GetLogLevel() parses the log string in the config file into a LogLevel enum
func (m *MainConfig) GetLogLevel() int32 {
	switch {
	case strings.Contains(strings.ToLower(m.LogLevel), "deb"):
		return DebugLevel
	case strings.Contains(strings.ToLower(m.LogLevel), "inf"):
		return InfoLevel
	case strings.Contains(strings.ToLower(m.LogLevel), "war"):
		return WarnLevel
	case strings.Contains(strings.ToLower(m.LogLevel), "err"):
		return ErrorLevel
	default:
		return DebugLevel
	}
}

// CONSENSUS CONFIG BELOW

// ConsensusConfig defines the phase timing of the round state machine
// NOTES:
// - each phase of round r sleeps r x DeltaMS, the linear backoff that restores liveness under asynchrony
// - CommitTimeMS is the extra wait during FINALIZE to gather laggard commits before installing the block
type ConsensusConfig struct {
	DeltaMS            int `json:"deltaMS"`            // the base phase step delay in milliseconds, scaled by round number
	CommitTimeMS       int `json:"commitTimeMS"`       // how long (in milliseconds) to gather laggard commits before finalizing
	NewHeightTimeoutMS int `json:"newHeightTimeoutMS"` // the pause between installing a block and starting the next height
}

// DefaultConsensusConfig() configures the round timing
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		DeltaMS:            300, // each phase of round r waits r*300ms
		CommitTimeMS:       300, // one extra delta of commit gathering
		NewHeightTimeoutMS: 50,  // brief pause before the next height begins
	}
}

// Delta() returns the base phase delay as a duration in milliseconds
func (c *ConsensusConfig) Delta() int { return c.DeltaMS }

// LEDGER CONFIG BELOW

// LedgerConfig defines the staking ledger constants
type LedgerConfig struct {
	UnstakeDelay uint64 `json:"unstakeDelay"` // the number of heights between scheduling an unbond and its release
}

// DefaultLedgerConfig() sets the 35 height unbonding delay
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		UnstakeDelay: 35,
	}
}

// MEMPOOL CONFIG BELOW

// MempoolConfig bounds the size of the transaction pool
type MempoolConfig struct {
	MaxTransactionCount uint32 `json:"maxTransactionCount"` // maximum number of transactions held at once
	MaxMempoolBytes     string `json:"maxMempoolBytes"`     // maximum total size of the pool, human readable (ex: "32MB")
	MaxTransactionBytes string `json:"maxTransactionBytes"` // maximum size of a single transaction, human readable
}

// DefaultMempoolConfig() bounds the pool at 5k transactions and 32MB
func DefaultMempoolConfig() MempoolConfig {
	return MempoolConfig{
		MaxTransactionCount: 5000,
		MaxMempoolBytes:     "32MB",
		MaxTransactionBytes: "4KB",
	}
}

// MaxMempoolSize() parses the human readable pool limit into bytes
func (m *MempoolConfig) MaxMempoolSize() uint64 {
	size, err := units.ParseStrictBytes(m.MaxMempoolBytes)
	if err != nil {
		size = int64(32 * units.MB)
	}
	return uint64(size)
}

// MaxTxSize() parses the human readable transaction limit into bytes
func (m *MempoolConfig) MaxTxSize() uint64 {
	size, err := units.ParseStrictBytes(m.MaxTransactionBytes)
	if err != nil {
		size = int64(4 * units.KB)
	}
	return uint64(size)
}

// STORE CONFIG BELOW

// StoreConfig defines the block store options
type StoreConfig struct {
	InMemory bool   `json:"inMemory"` // hold the chain in memory only (tests and localnet demos)
	DBName   string `json:"dbName"`   // the name of the database directory under the data dir
}

// DefaultStoreConfig() uses an in-memory store
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		InMemory: true,
		DBName:   "auric",
	}
}

// RPC CONFIG BELOW

type RPCConfig struct {
	RPCPort  string `json:"rpcPort"`  // the port where the rpc server is hosted
	RPCUrl   string `json:"rpcURL"`   // the url where the rpc server is hosted
	TimeoutS int    `json:"timeoutS"` // the rpc request timeout in seconds
}

// DefaultRPCConfig() serves the rpc on localhost:42000
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		RPCPort:  "42000",
		RPCUrl:   "http://localhost:42000",
		TimeoutS: 3,
	}
}

// METRICS CONFIG BELOW

type MetricsConfig struct {
	MetricsEnabled bool   `json:"metricsEnabled"` // serve prometheus telemetry?
	MetricsPort    string `json:"metricsPort"`    // the port where the prometheus metrics are hosted
}

// DefaultMetricsConfig() disables telemetry by default
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MetricsEnabled: false,
		MetricsPort:    "42001",
	}
}

// WriteToFile() saves the Config object to a JSON file
func (c Config) WriteToFile(filepath string) error {
	configBz, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, configBz, os.ModePerm)
}

// NewConfigFromFile() populates a Config object from a JSON file, filling any unset values with defaults
func NewConfigFromFile(filepath string) (Config, error) {
	fileBytes, err := os.ReadFile(filepath)
	if err != nil {
		return Config{}, err
	}
	c := DefaultConfig()
	if err = json.Unmarshal(fileBytes, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// DefaultDataDirPath() returns the default data directory: $HOME/.auric
func DefaultDataDirPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".auric")
}
