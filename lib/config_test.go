package lib

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigRoundTripAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFilePath)
	config := DefaultConfig()
	config.DeltaMS = 150
	require.NoError(t, config.WriteToFile(path))
	loaded, err := NewConfigFromFile(path)
	require.NoError(t, err)
	require.Equal(t, 150, loaded.DeltaMS)
	// unset fields fall back to developer defaults
	require.EqualValues(t, 35, loaded.UnstakeDelay)
	require.Equal(t, "42000", loaded.RPCPort)
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected int32
	}{
		{"debug", DebugLevel},
		{"Info", InfoLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"gibberish", DebugLevel},
	}
	for _, test := range tests {
		m := MainConfig{LogLevel: test.level}
		require.Equal(t, test.expected, m.GetLogLevel(), test.level)
	}
}

func TestMempoolSizeParsing(t *testing.T) {
	m := DefaultMempoolConfig()
	require.EqualValues(t, 32_000_000, m.MaxMempoolSize())
	require.EqualValues(t, 4_000, m.MaxTxSize())
	// unparseable limits fall back rather than fail
	m.MaxMempoolBytes = "a lot"
	require.NotZero(t, m.MaxMempoolSize())
}
