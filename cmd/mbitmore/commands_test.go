package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/mbitmore/internal/characteristic"
	"github.com/srg/mbitmore/internal/service"
	"github.com/srg/mbitmore/internal/testutils"
	"github.com/srg/mbitmore/internal/transport/goble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// CommandTestSuite runs the root command in-process with captured output.
type CommandTestSuite struct {
	suite.Suite
	originalDeviceFactory func(int) (ble.Device, error)
}

func TestCommandTestSuite(t *testing.T) {
	suite.Run(t, new(CommandTestSuite))
}

func (s *CommandTestSuite) SetupSuite() {
	s.originalDeviceFactory = goble.DeviceFactory
}

func (s *CommandTestSuite) TearDownSuite() {
	goble.DeviceFactory = s.originalDeviceFactory
}

// SetupTest restores flag defaults; cobra keeps parsed values between runs.
func (s *CommandTestSuite) SetupTest() {
	tableFormat = "table"
	tableBaseUUID = characteristic.DefaultBaseUUID

	simulateSteps = 10
	simulateInterval = 0
	simulatePolicy = "changed"
	simulateFormat = "table"
	simulateClickEvery = 5
	simulateWrites = nil

	serveCmd.ResetFlags()
	addServeFlags(serveCmd)

	_ = rootCmd.PersistentFlags().Set("log-level", "")
	goble.DeviceFactory = s.originalDeviceFactory
}

// ExecuteCommand runs rootCmd with args and returns stdout, stderr and the error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (s *CommandTestSuite) TestTableText() {
	// GOAL: Verify the table command prints every characteristic with its derived UUID
	//
	// TEST SCENARIO: Default base UUID → aligned table → suffixes, capacities and properties match

	out, _, err := s.ExecuteCommand("table")
	s.Require().NoError(err, "table command MUST succeed")

	expected := `
SERVICE 0b50f3e4-607f-4151-9091-7d008d6ffc5c
IDX  NAME          UUID                                  CAP   PROPERTIES
0    command       0b500100-607f-4151-9091-7d008d6ffc5c  <=20  write-nr,write
1    sensors       0b500101-607f-4151-9091-7d008d6ffc5c  7     read,notify
2    direction     0b500102-607f-4151-9091-7d008d6ffc5c  18    read,notify
3    pin_event     0b500110-607f-4151-9091-7d008d6ffc5c  <=20  notify
4    action_event  0b500111-607f-4151-9091-7d008d6ffc5c  <=20  notify
5    analog_in_p0  0b500120-607f-4151-9091-7d008d6ffc5c  2     read,notify
6    analog_in_p1  0b500121-607f-4151-9091-7d008d6ffc5c  2     read,notify
7    analog_in_p2  0b500122-607f-4151-9091-7d008d6ffc5c  2     read,notify
8    shared_data   0b500130-607f-4151-9091-7d008d6ffc5c  8     read,write-nr,write,notify
`
	testutils.NewTextAsserter(s.T()).Assert(out, expected)
}

func (s *CommandTestSuite) TestTableJSONWithCustomBase() {
	// GOAL: Verify JSON output keeps key order and follows --base-uuid
	//
	// TEST SCENARIO: Custom base → JSON → service and characteristic UUIDs carry the new base

	out, _, err := s.ExecuteCommand("table", "--format", "json", "--base-uuid", "12340000-0000-1000-8000-00805f9b34fb")
	s.Require().NoError(err, "table command MUST succeed")

	expected := `{
  "service": "1234f3e4-0000-1000-8000-00805f9b34fb",
  "base": "12340000-0000-1000-8000-00805f9b34fb",
  "characteristics": [
    {"index": 0, "name": "command", "uuid": "12340100-0000-1000-8000-00805f9b34fb", "capacity": 20, "variable": true, "properties": ["write-nr", "write"]},
    {"index": 1, "name": "sensors", "uuid": "12340101-0000-1000-8000-00805f9b34fb", "capacity": 7, "variable": false, "properties": ["read", "notify"]},
    {"index": 2, "name": "direction", "uuid": "12340102-0000-1000-8000-00805f9b34fb", "capacity": 18, "variable": false, "properties": ["read", "notify"]},
    {"index": 3, "name": "pin_event", "uuid": "12340110-0000-1000-8000-00805f9b34fb", "capacity": 20, "variable": true, "properties": ["notify"]},
    {"index": 4, "name": "action_event", "uuid": "12340111-0000-1000-8000-00805f9b34fb", "capacity": 20, "variable": true, "properties": ["notify"]},
    {"index": 5, "name": "analog_in_p0", "uuid": "12340120-0000-1000-8000-00805f9b34fb", "capacity": 2, "variable": false, "properties": ["read", "notify"]},
    {"index": 6, "name": "analog_in_p1", "uuid": "12340121-0000-1000-8000-00805f9b34fb", "capacity": 2, "variable": false, "properties": ["read", "notify"]},
    {"index": 7, "name": "analog_in_p2", "uuid": "12340122-0000-1000-8000-00805f9b34fb", "capacity": 2, "variable": false, "properties": ["read", "notify"]},
    {"index": 8, "name": "shared_data", "uuid": "12340130-0000-1000-8000-00805f9b34fb", "capacity": 8, "variable": false, "properties": ["read", "write-nr", "write", "notify"]}
  ]
}`
	testutils.NewJSONAsserter(s.T()).Assert(out, expected)
	s.Less(bytes.Index([]byte(out), []byte(`"service"`)), bytes.Index([]byte(out), []byte(`"characteristics"`)),
		"keys MUST keep insertion order")
}

func (s *CommandTestSuite) TestTableRejectsBadInput() {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"unknown format", []string{"table", "--format", "xml"}, "invalid format 'xml'"},
		{"malformed base", []string{"table", "--base-uuid", "not-a-uuid"}, "invalid base UUID"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			_, _, err := s.ExecuteCommand(tt.args...)
			s.Require().Error(err)
			s.Contains(err.Error(), tt.msg)
		})
	}
}

func (s *CommandTestSuite) TestSimulateSummaryJSON() {
	// GOAL: Verify a simulated run notifies every periodic channel once, then only the changed ones
	//
	// TEST SCENARIO: 3 ticks, changed policy → 6 + 5 + 5 notifications (shared data never changes)

	out, stderr, err := s.ExecuteCommand("simulate", "--steps", "3", "--format", "json")
	s.Require().NoError(err, "simulate MUST succeed")

	expected := `{
  "ticks": 3,
  "writes": 0,
  "rejected_writes": 0,
  "truncated_writes": 0,
  "notifications": 16,
  "failed_notifications": 0,
  "printed": 16,
  "commands": 0,
  "display": "",
  "shared_data": [0, 0, 0, 0]
}`
	testutils.NewJSONAsserter(s.T()).Assert(out, expected)
	s.Contains(stderr, "sensors", "notifications MUST be printed to stderr in JSON mode")
	s.Contains(stderr, "shared_data")
}

func (s *CommandTestSuite) TestSimulateAppliesWrites() {
	// GOAL: Verify writes given on the command line reach the board and the shared data channel
	//
	// TEST SCENARIO: display text + shared data write → journal, display and slots updated → next tick notifies new slots

	out, stderr, err := s.ExecuteCommand("simulate", "--steps", "1", "--format", "json",
		"--write", "command=014869", "--write", "shared_data=0100020003000400")
	s.Require().NoError(err, "simulate MUST succeed")

	expected := `{
  "ticks": 1,
  "writes": 2,
  "commands": 1,
  "display": "Hi",
  "shared_data": [1, 2, 3, 4]
}`
	testutils.NewJSONAsserter(s.T(), testutils.WithIgnoreExtraKeys(true)).Assert(out, expected)
	s.Contains(stderr, "0100020003000400", "shared data notification MUST carry the written slots")
}

func (s *CommandTestSuite) TestSimulateTextSummary() {
	out, _, err := s.ExecuteCommand("simulate", "--steps", "5", "--policy", "always")
	s.Require().NoError(err, "simulate MUST succeed")

	s.Contains(out, "SUMMARY")
	s.Regexp(`(?m)^ticks\s+5$`, out)
	// 6 periodic channels on each of 5 ticks, plus one button click
	s.Regexp(`(?m)^notifications\s+31$`, out)
	s.Contains(out, "action_event")
}

func (s *CommandTestSuite) TestSimulateWriteErrors() {
	tests := []struct {
		name   string
		write  string
		target error
		msg    string
	}{
		{"unknown characteristic", "bogus=00", service.ErrUnknownCharacteristic, "mbitmore table"},
		{"read-only characteristic", "sensors=00", service.ErrNotWritable, "not writable"},
		{"missing separator", "command", nil, "expected <characteristic>=<hex>"},
		{"bad hex", "command=zz", nil, "invalid hex"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			_, _, err := s.ExecuteCommand("simulate", "--steps", "1", "--write", tt.write)
			s.Require().Error(err)
			if tt.target != nil {
				s.ErrorIs(err, tt.target)
			}
			s.Contains(FormatUserError(err), tt.msg)
		})
	}
}

func (s *CommandTestSuite) TestSimulateRejectsBadFlags() {
	_, _, err := s.ExecuteCommand("simulate", "--steps", "0")
	s.ErrorContains(err, "steps must be > 0")

	s.SetupTest()
	_, _, err = s.ExecuteCommand("simulate", "--policy", "sometimes")
	s.ErrorContains(err, "invalid notify policy")

	s.SetupTest()
	_, _, err = s.ExecuteCommand("simulate", "--log-level", "loud")
	s.ErrorContains(err, "invalid log level")
}

func (s *CommandTestSuite) TestServeWithoutController() {
	// GOAL: Verify a missing controller is reported with a hint and nothing is advertised
	//
	// TEST SCENARIO: device factory fails → serve returns ErrNoController → user message carries hint

	cause := errors.New("hci0: no such device")
	goble.DeviceFactory = func(int) (ble.Device, error) { return nil, cause }

	_, _, err := s.ExecuteCommand("serve", "--interval", "10ms")
	s.Require().Error(err)
	s.ErrorIs(err, ErrNoController)
	s.ErrorIs(err, cause)
	s.Contains(FormatUserError(err), "is Bluetooth enabled?")
}

func (s *CommandTestSuite) TestServeConfigOverrides() {
	path := filepath.Join(s.T().TempDir(), "mbitmore.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("device_name: fromfile\ntick_interval: 20ms\nhci_device: 2\n"), 0o600))

	s.Require().NoError(serveCmd.Flags().Set("config", path))
	s.Require().NoError(serveCmd.Flags().Set("policy", "always"))
	s.Require().NoError(serveCmd.Flags().Set("hci", "1"))

	cfg, err := serveConfig(serveCmd)
	s.Require().NoError(err)
	s.Equal("fromfile", cfg.DeviceName, "file value MUST be kept when the flag is not set")
	s.Equal(20*time.Millisecond, cfg.TickInterval)
	s.Equal(1, cfg.HCIDevice, "flag MUST override the file")
	s.Equal(service.PolicyAlways, cfg.Policy())
}

func (s *CommandTestSuite) TestServeConfigRejectsInvalidOverride() {
	s.Require().NoError(serveCmd.Flags().Set("name", "much-too-long"))

	_, err := serveConfig(serveCmd)
	s.Require().Error(err)
	s.Contains(err.Error(), "invalid configuration")
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom "), "boom"},
		{"permission", &os.PathError{Op: "open", Path: "/dev/hci0", Err: os.ErrPermission}, "CAP_NET_ADMIN"},
		{"no controller", ErrNoController, "is Bluetooth enabled?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, FormatUserError(tt.err), tt.want)
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	stderr := new(bytes.Buffer)
	cmd.SetErr(stderr)

	logger, err := configureLogger(cmd, logrus.WarnLevel)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel(), "fallback MUST apply when the flag is unset")

	require.NoError(t, cmd.Flags().Set("log-level", "debug"))
	logger, err = configureLogger(cmd, logrus.WarnLevel)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.Debug("hello")
	assert.Contains(t, stderr.String(), "hello", "logger MUST write to the command's stderr")

	require.NoError(t, cmd.Flags().Set("log-level", "loud"))
	_, err = configureLogger(cmd, logrus.WarnLevel)
	assert.Error(t, err)
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
}
