package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Store.Compression)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Dump.Verify)

	cfg, err = Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "stdout", cfg.Logging.Output)
}

func TestLoad_Overrides(t *testing.T) {
	yaml := `
store:
  path: /var/lib/app/events.slog
  compression: zstd
  read_only: true
logging:
  level: warn
  output: none
dump:
  show_records: 3
`
	cfg, err := Load(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/app/events.slog", cfg.Store.Path)
	assert.Equal(t, "zstd", cfg.Store.Compression)
	assert.True(t, cfg.Store.ReadOnly)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Dump.ShowRecords)
	assert.True(t, cfg.Dump.Verify, "unset fields keep their defaults")
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad_compression": "store:\n  compression: brotli\n",
		"bad_level":       "logging:\n  level: verbose\n",
		"bad_output":      "logging:\n  output: syslog\n",
		"bad_yaml":        "store: [unclosed\n",
		"bad_records":     "dump:\n  show_records: -1\n",
	}
	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/to/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestCreateLogger(t *testing.T) {
	logger, closer, err := CreateLogger(LoggingConfig{Level: "debug", Output: "none"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Nil(t, closer)

	_, _, err = CreateLogger(LoggingConfig{Level: "loud", Output: "stdout"})
	require.Error(t, err)

	_, _, err = CreateLogger(LoggingConfig{Level: "info", Output: "file"})
	require.Error(t, err, "file output without a path must fail")
}
