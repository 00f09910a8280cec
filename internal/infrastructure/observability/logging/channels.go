// Package logging provides structured logging channels for the widget controllers and the
// reference backend, with per-widget context and session id masking.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Channel represents a logical logging channel for different system components
type Channel string

const (
	// System channels
	ChannelSystem   Channel = "system"   // General system operations
	ChannelStartup  Channel = "startup"  // Application startup and initialization
	ChannelShutdown Channel = "shutdown" // Application shutdown and cleanup

	// Widget channels
	ChannelEmbed    Channel = "embed"    // Host-side bootstrap and visibility
	ChannelFrame    Channel = "frame"    // Iframe-side session controller
	ChannelSession  Channel = "session"  // Session and identity resolution
	ChannelStorage  Channel = "storage"  // Local session store
	ChannelProtocol Channel = "protocol" // Dropped channel messages (development only)

	// Backend channels
	ChannelAPI      Channel = "api"      // Backend client and HTTP handlers
	ChannelAuth     Channel = "auth"     // Customer hash and access tokens
	ChannelDatabase Channel = "database" // Database operations and queries
	ChannelEmail    Channel = "email"    // Verification email delivery
	ChannelRelay    Channel = "relay"    // Websocket message relay
	ChannelCache    Channel = "cache"    // Widget cache hits, misses and sweeps

	ChannelPerf  Channel = "performance" // Operation timings
	ChannelDebug Channel = "debug"       // Debug information
)

var allChannels = []Channel{
	ChannelSystem, ChannelStartup, ChannelShutdown,
	ChannelEmbed, ChannelFrame, ChannelSession, ChannelStorage, ChannelProtocol,
	ChannelAPI, ChannelAuth, ChannelDatabase, ChannelEmail, ChannelRelay, ChannelCache,
	ChannelPerf, ChannelDebug,
}

// ChanneledLogger provides structured logging with multiple channels
type ChanneledLogger struct {
	channels map[Channel]*slog.Logger
	config   *LoggerConfig
	files    []*os.File
	configMu sync.RWMutex
}

// LoggerConfig contains configuration options for the channeled logger
type LoggerConfig struct {
	OutputToFile    bool      `json:"outputToFile"`
	OutputToConsole bool      `json:"outputToConsole"`
	LogDirectory    string    `json:"logDirectory"`
	Output          io.Writer `json:"-"` // replaces console output when set

	JSONFormat    bool `json:"jsonFormat"`
	IncludeSource bool `json:"includeSource"`

	DefaultLevel  slog.Level             `json:"defaultLevel"`
	ChannelLevels map[Channel]slog.Level `json:"channelLevels"`

	// DevMode enables protocol drop logging, which is otherwise discarded.
	DevMode bool `json:"devMode"`
}

// DefaultLoggerConfig returns a console-only text configuration at info level
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: true,
		LogDirectory:    "logs",
		JSONFormat:      false,
		IncludeSource:   false,
		DefaultLevel:    slog.LevelInfo,
		ChannelLevels:   make(map[Channel]slog.Level),
	}
}

// NewChanneledLogger creates a new channeled logger with the given configuration
func NewChanneledLogger(config *LoggerConfig) (*ChanneledLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.ChannelLevels == nil {
		config.ChannelLevels = make(map[Channel]slog.Level)
	}

	logger := &ChanneledLogger{
		channels: make(map[Channel]*slog.Logger),
		config:   config,
	}

	if config.OutputToFile {
		if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	for _, channel := range allChannels {
		channelLogger, err := logger.createChannelLogger(channel)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger for channel %s: %w", channel, err)
		}
		logger.channels[channel] = channelLogger
	}

	return logger, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *ChanneledLogger {
	logger, _ := NewChanneledLogger(&LoggerConfig{Output: io.Discard, OutputToConsole: true})
	return logger
}

func (cl *ChanneledLogger) createChannelLogger(channel Channel) (*slog.Logger, error) {
	level := cl.config.DefaultLevel
	if channelLevel, exists := cl.config.ChannelLevels[channel]; exists {
		level = channelLevel
	}

	var writers []io.Writer
	if cl.config.OutputToConsole {
		if cl.config.Output != nil {
			writers = append(writers, cl.config.Output)
		} else {
			writers = append(writers, os.Stdout)
		}
	}

	if cl.config.OutputToFile {
		path := filepath.Join(cl.config.LogDirectory, string(channel)+".log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		cl.files = append(cl.files, file)
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	if channel == ChannelProtocol && !cl.config.DevMode {
		writer = io.Discard
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cl.config.IncludeSource,
	}

	var handler slog.Handler
	if cl.config.JSONFormat {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	return slog.New(handler).With(slog.String("channel", string(channel))), nil
}

func (cl *ChanneledLogger) get(channel Channel) *slog.Logger {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()
	return cl.channels[channel]
}

func (cl *ChanneledLogger) System() *slog.Logger   { return cl.get(ChannelSystem) }
func (cl *ChanneledLogger) Startup() *slog.Logger  { return cl.get(ChannelStartup) }
func (cl *ChanneledLogger) Shutdown() *slog.Logger { return cl.get(ChannelShutdown) }
func (cl *ChanneledLogger) Embed() *slog.Logger    { return cl.get(ChannelEmbed) }
func (cl *ChanneledLogger) Frame() *slog.Logger    { return cl.get(ChannelFrame) }
func (cl *ChanneledLogger) Session() *slog.Logger  { return cl.get(ChannelSession) }
func (cl *ChanneledLogger) Storage() *slog.Logger  { return cl.get(ChannelStorage) }
func (cl *ChanneledLogger) Protocol() *slog.Logger { return cl.get(ChannelProtocol) }
func (cl *ChanneledLogger) API() *slog.Logger      { return cl.get(ChannelAPI) }
func (cl *ChanneledLogger) Auth() *slog.Logger     { return cl.get(ChannelAuth) }
func (cl *ChanneledLogger) Database() *slog.Logger { return cl.get(ChannelDatabase) }
func (cl *ChanneledLogger) Email() *slog.Logger    { return cl.get(ChannelEmail) }
func (cl *ChanneledLogger) Relay() *slog.Logger    { return cl.get(ChannelRelay) }
func (cl *ChanneledLogger) Cache() *slog.Logger    { return cl.get(ChannelCache) }
func (cl *ChanneledLogger) Perf() *slog.Logger     { return cl.get(ChannelPerf) }
func (cl *ChanneledLogger) Debug() *slog.Logger    { return cl.get(ChannelDebug) }

// GetChannel returns a logger for a specific channel
func (cl *ChanneledLogger) GetChannel(channel Channel) *slog.Logger {
	if logger := cl.get(channel); logger != nil {
		return logger
	}
	return cl.get(ChannelSystem)
}

// WithWidget returns a logger with widget context
func (cl *ChanneledLogger) WithWidget(channel Channel, widgetID string) *slog.Logger {
	return cl.GetChannel(channel).With(slog.String("widgetId", widgetID))
}

// WithOperation returns a logger with operation context
func (cl *ChanneledLogger) WithOperation(channel Channel, operation string) *slog.Logger {
	return cl.GetChannel(channel).With(slog.String("operation", operation))
}

// LogError logs an error with appropriate context and channel
func (cl *ChanneledLogger) LogError(channel Channel, operation string, err error, widgetID string, metadata map[string]any) {
	logger := cl.GetChannel(channel).With(
		slog.String("operation", operation),
		slog.String("widgetId", widgetID),
		slog.String("error", err.Error()),
	)
	for key, value := range metadata {
		logger = logger.With(slog.Any(key, value))
	}
	logger.Error("Operation failed")
}

// LogSlowQuery warns about a query that exceeded the slow query threshold
func (cl *ChanneledLogger) LogSlowQuery(query string, duration time.Duration, widgetID string) {
	cl.Database().Warn("Slow query detected",
		slog.String("query", strings.Join(strings.Fields(query), " ")),
		slog.Duration("duration", duration),
		slog.String("widgetId", widgetID),
	)
}

// DevMode reports whether protocol drops are being logged.
func (cl *ChanneledLogger) DevMode() bool {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()
	return cl.config.DevMode
}

// SanitizeSessionID partially masks session ids for logging
func SanitizeSessionID(sessionID string) string {
	if len(sessionID) <= 8 {
		return "********"
	}
	return sessionID[:4] + "****" + sessionID[len(sessionID)-4:]
}

// SanitizeEmail keeps the domain and the first character of the local part
func SanitizeEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "****"
	}
	return email[:1] + "****" + email[at:]
}

// SetChannelLevel dynamically sets the log level for a specific channel
func (cl *ChanneledLogger) SetChannelLevel(channel Channel, level slog.Level) error {
	cl.configMu.Lock()
	defer cl.configMu.Unlock()

	if _, exists := cl.channels[channel]; !exists {
		return fmt.Errorf("channel %s does not exist", channel)
	}

	cl.config.ChannelLevels[channel] = level
	newLogger, err := cl.createChannelLogger(channel)
	if err != nil {
		return fmt.Errorf("failed to recreate logger for channel %s: %w", channel, err)
	}
	cl.channels[channel] = newLogger
	return nil
}

// GetChannelLevels returns the current log levels for all channels.
func (cl *ChanneledLogger) GetChannelLevels() map[string]string {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()

	levels := make(map[string]string)
	for channel := range cl.channels {
		if level, ok := cl.config.ChannelLevels[channel]; ok {
			levels[string(channel)] = level.String()
		} else {
			levels[string(channel)] = cl.config.DefaultLevel.String()
		}
	}
	return levels
}

// ParseLevel maps a LOG_LEVEL value onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Close releases any log files
func (cl *ChanneledLogger) Close() error {
	cl.configMu.Lock()
	defer cl.configMu.Unlock()

	var firstErr error
	for _, f := range cl.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	cl.files = nil
	return firstErr
}
