package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

// LoggerTestSuite tests the log package
type LoggerTestSuite struct {
	suite.Suite
	originalLogger zerolog.Logger
	testOutput     *bytes.Buffer
}

func (s *LoggerTestSuite) SetupTest() {
	s.originalLogger = Logger
	s.testOutput = &bytes.Buffer{}
	SetOutput(s.testOutput)
}

func (s *LoggerTestSuite) TearDownTest() {
	Logger = s.originalLogger
}

func (s *LoggerTestSuite) lastEntry() map[string]any {
	lines := bytes.Split(bytes.TrimSpace(s.testOutput.Bytes()), []byte("\n"))
	s.Require().NotEmpty(lines)

	var entry map[string]any
	s.Require().NoError(json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func (s *LoggerTestSuite) TestInfo() {
	Info().Str("ssid", "System.ESP32-C3").Msg("Access point configured")

	entry := s.lastEntry()
	s.Equal("info", entry["level"])
	s.Equal("Access point configured", entry["message"])
	s.Equal("System.ESP32-C3", entry["ssid"])
	s.Contains(entry, "time")
}

func (s *LoggerTestSuite) TestDebugSuppressedByDefault() {
	Debug().Msg("hidden")
	s.Empty(s.testOutput.String())
}

func (s *LoggerTestSuite) TestSetDebugMode() {
	SetDebugMode()
	Debug().Msg("visible")

	entry := s.lastEntry()
	s.Equal("debug", entry["level"])
	s.Equal("visible", entry["message"])
}

func (s *LoggerTestSuite) TestWarnAndError() {
	Warn().Msg("careful")
	s.Equal("warn", s.lastEntry()["level"])

	Error().Msg("broken")
	s.Equal("error", s.lastEntry()["level"])
}

func (s *LoggerTestSuite) TestComponent() {
	logger := Component("eventbus")
	logger.Info().Msg("Event received")

	entry := s.lastEntry()
	s.Equal("eventbus", entry["component"])
}

func TestLoggerTestSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}
