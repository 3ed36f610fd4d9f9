package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/mbitmore/internal/characteristic"
	"github.com/srg/mbitmore/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "mbitmore", cfg.DeviceName)
	assert.Equal(t, 0, cfg.HCIDevice)
	assert.Equal(t, characteristic.DefaultBaseUUID, cfg.BaseUUID)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, service.PolicyChanged, cfg.Policy())
	assert.Equal(t, uint32(64), cfg.JournalSize)
	assert.NoError(t, cfg.Validate(), "defaults MUST be valid")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, cfg *Config)
		wantErr string
	}{
		{
			name: "empty document keeps defaults",
			yaml: "",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "overrides",
			yaml: `
log_level: debug
device_name: bit-7
hci_device: 1
tick_interval: 200ms
notify_policy: always
journal_size: 8
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, logrus.DebugLevel, cfg.Level())
				assert.Equal(t, "bit-7", cfg.DeviceName)
				assert.Equal(t, 1, cfg.HCIDevice)
				assert.Equal(t, 200*time.Millisecond, cfg.TickInterval)
				assert.Equal(t, service.PolicyAlways, cfg.Policy())
				assert.Equal(t, uint32(8), cfg.JournalSize)
				assert.Equal(t, characteristic.DefaultBaseUUID, cfg.BaseUUID, "unset keys MUST keep defaults")
			},
		},
		{
			name:    "unknown key",
			yaml:    "scan_timeout: 10s\n",
			wantErr: "invalid YAML",
		},
		{
			name:    "bad level",
			yaml:    "log_level: loud\n",
			wantErr: "log_level",
		},
		{
			name:    "long name",
			yaml:    "device_name: microbit-more\n",
			wantErr: "device_name",
		},
		{
			name:    "empty name",
			yaml:    "device_name: \"\"\n",
			wantErr: "device_name must not be empty",
		},
		{
			name:    "bad uuid",
			yaml:    "base_uuid: nope\n",
			wantErr: "base_uuid",
		},
		{
			name:    "zero tick",
			yaml:    "tick_interval: 0s\n",
			wantErr: "tick_interval",
		},
		{
			name:    "bad policy",
			yaml:    "notify_policy: never\n",
			wantErr: "notify_policy",
		},
		{
			name:    "zero journal",
			yaml:    "journal_size: 0\n",
			wantErr: "journal_size",
		},
		{
			name:    "negative hci",
			yaml:    "hci_device: -1\n",
			wantErr: "hci_device",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbitmore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device_name: lab\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lab", cfg.DeviceName)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestConfig_Table(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseUUID = "12340000-0000-1000-8000-00805f9b34fb"

	table, err := cfg.Table()
	require.NoError(t, err)
	assert.Equal(t, "1234f3e4-0000-1000-8000-00805f9b34fb", table.ServiceText())
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{name: "debug", logLevel: "debug", want: logrus.DebugLevel},
		{name: "info", logLevel: "info", want: logrus.InfoLevel},
		{name: "warn", logLevel: "warn", want: logrus.WarnLevel},
		{name: "error", logLevel: "error", want: logrus.ErrorLevel},
		{name: "unparsable falls back to info", logLevel: "chatty", want: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}
