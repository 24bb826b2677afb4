package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"circles_go/internal/protocol/llrp"
	"circles_go/internal/reader"
	"circles_go/internal/tags"
	"circles_go/sdk"
)

type Config struct {
	Device             string
	Mock               bool
	Port               int
	RefreshInterval    time.Duration
	LivenessMultiplier int
	HistoryWindows     int
	ConnectTimeout     time.Duration
	ConfirmTimeout     time.Duration
	ZebraDwell         time.Duration

	LogLevel string
	LogFile  string

	HTTPAddr  string
	IPCSocket string

	MQTTBroker      string
	MQTTTopicPrefix string
	MQTTClientID    string
}

type fileConfig struct {
	Device             string `toml:"device"`
	Mock               bool   `toml:"mock"`
	Port               int    `toml:"port"`
	RefreshIntervalMS  int64  `toml:"refresh_interval_ms"`
	LivenessMultiplier int    `toml:"liveness_multiplier"`
	HistoryWindows     int    `toml:"history_windows"`
	ConnectTimeoutMS   int64  `toml:"connect_timeout_ms"`
	ConfirmTimeoutMS   int64  `toml:"confirm_timeout_ms"`
	ZebraDwellMS       int64  `toml:"zebra_dwell_ms"`
	LogLevel           string `toml:"log_level"`
	LogFile            string `toml:"log_file"`
	HTTPAddr           string `toml:"http_addr"`
	IPCSocket          string `toml:"ipc_socket"`
	MQTTBroker         string `toml:"mqtt_broker"`
	MQTTTopicPrefix    string `toml:"mqtt_topic_prefix"`
	MQTTClientID       string `toml:"mqtt_client_id"`
}

func Default() Config {
	return Config{
		Port:               llrp.DefaultPort,
		RefreshInterval:    sdk.DefaultRefreshInterval,
		LivenessMultiplier: sdk.DefaultLivenessMultiplier,
		HistoryWindows:     tags.DefaultHistoryWindows,
		ConnectTimeout:     sdk.DefaultConnectTimeout,
		ConfirmTimeout:     sdk.DefaultConfirmTimeout,
		LogLevel:           "info",
		LogFile:            "circles.log",
		HTTPAddr:           ":8098",
		IPCSocket:          "/tmp/circles-reader.sock",
		MQTTTopicPrefix:    "circles",
		MQTTClientID:       "circles-reader",
	}
}

// Load applies defaults, then the TOML file at path (skipped when path is
// empty), then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	cfg.clamp()
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if meta.IsDefined("device") {
		c.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("mock") {
		c.Mock = raw.Mock
	}
	if meta.IsDefined("port") {
		c.Port = raw.Port
	}
	if meta.IsDefined("refresh_interval_ms") {
		c.RefreshInterval = time.Duration(raw.RefreshIntervalMS) * time.Millisecond
	}
	if meta.IsDefined("liveness_multiplier") {
		c.LivenessMultiplier = raw.LivenessMultiplier
	}
	if meta.IsDefined("history_windows") {
		c.HistoryWindows = raw.HistoryWindows
	}
	if meta.IsDefined("connect_timeout_ms") {
		c.ConnectTimeout = time.Duration(raw.ConnectTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("confirm_timeout_ms") {
		c.ConfirmTimeout = time.Duration(raw.ConfirmTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("zebra_dwell_ms") {
		c.ZebraDwell = time.Duration(raw.ZebraDwellMS) * time.Millisecond
	}
	if meta.IsDefined("log_level") {
		c.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_file") {
		c.LogFile = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("http_addr") {
		c.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("ipc_socket") {
		c.IPCSocket = strings.TrimSpace(raw.IPCSocket)
	}
	if meta.IsDefined("mqtt_broker") {
		c.MQTTBroker = strings.TrimSpace(raw.MQTTBroker)
	}
	if meta.IsDefined("mqtt_topic_prefix") {
		c.MQTTTopicPrefix = strings.TrimSpace(raw.MQTTTopicPrefix)
	}
	if meta.IsDefined("mqtt_client_id") {
		c.MQTTClientID = strings.TrimSpace(raw.MQTTClientID)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Device = envOr("CIRCLES_DEVICE", c.Device)
	c.Mock = envBool("CIRCLES_MOCK", c.Mock)
	if _, ok := os.LookupEnv("MOCK_RFID_READER"); ok {
		c.Mock = true
	}
	c.Port = envInt("CIRCLES_PORT", c.Port)
	c.RefreshInterval = envDurationMS("CIRCLES_REFRESH_INTERVAL_MS", c.RefreshInterval)
	c.LivenessMultiplier = envInt("CIRCLES_LIVENESS_MULTIPLIER", c.LivenessMultiplier)
	c.HistoryWindows = envInt("CIRCLES_HISTORY_WINDOWS", c.HistoryWindows)
	c.ConnectTimeout = envDurationMS("CIRCLES_CONNECT_TIMEOUT_MS", c.ConnectTimeout)
	c.ConfirmTimeout = envDurationMS("CIRCLES_CONFIRM_TIMEOUT_MS", c.ConfirmTimeout)
	c.ZebraDwell = envDurationMS("CIRCLES_ZEBRA_DWELL_MS", c.ZebraDwell)
	c.LogLevel = envOr("CIRCLES_LOG_LEVEL", c.LogLevel)
	c.LogFile = envOr("CIRCLES_LOG_FILE", c.LogFile)
	c.HTTPAddr = envOr("CIRCLES_HTTP_ADDR", c.HTTPAddr)
	c.IPCSocket = envOr("CIRCLES_IPC_SOCKET", c.IPCSocket)
	c.MQTTBroker = envOr("CIRCLES_MQTT_BROKER", c.MQTTBroker)
	c.MQTTTopicPrefix = envOr("CIRCLES_MQTT_TOPIC_PREFIX", c.MQTTTopicPrefix)
	c.MQTTClientID = envOr("CIRCLES_MQTT_CLIENT_ID", c.MQTTClientID)

	if !envBool("CIRCLES_HTTP_ENABLED", true) {
		c.HTTPAddr = ""
	}
	if !envBool("CIRCLES_IPC_ENABLED", true) {
		c.IPCSocket = ""
	}
}

func (c *Config) clamp() {
	c.MQTTTopicPrefix = strings.Trim(c.MQTTTopicPrefix, "/")
	if c.MQTTTopicPrefix == "" {
		c.MQTTTopicPrefix = "circles"
	}
	if c.RefreshInterval > 0 && c.RefreshInterval < 50*time.Millisecond {
		c.RefreshInterval = 50 * time.Millisecond
	}
	if c.LivenessMultiplier > 0 && c.LivenessMultiplier < 2 {
		c.LivenessMultiplier = 2
	}
	if c.ConnectTimeout > 0 && c.ConnectTimeout < time.Second {
		c.ConnectTimeout = time.Second
	}
	if c.ConfirmTimeout > 0 && c.ConfirmTimeout < 100*time.Millisecond {
		c.ConfirmTimeout = 100 * time.Millisecond
	}
}

// Validate rejects values no reader session can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("refresh interval must be positive"))
	}
	if c.LivenessMultiplier <= 0 {
		errs = append(errs, errors.New("liveness multiplier must be positive"))
	}
	if c.HistoryWindows <= 0 {
		errs = append(errs, errors.New("history windows must be positive"))
	}
	if c.ConnectTimeout <= 0 || c.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.ZebraDwell < 0 || c.ZebraDwell > 65535*time.Millisecond {
		errs = append(errs, fmt.Errorf("zebra dwell %s out of range", c.ZebraDwell))
	}
	if c.Device != "" && !c.Mock {
		if err := reader.ValidateDevice(c.Device); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReaderOptions maps the reader keys onto sdk.Options.
func (c Config) ReaderOptions() sdk.Options {
	return sdk.Options{
		Port:               c.Port,
		RefreshInterval:    c.RefreshInterval,
		LivenessMultiplier: c.LivenessMultiplier,
		HistoryWindows:     c.HistoryWindows,
		ConnectTimeout:     c.ConnectTimeout,
		ConfirmTimeout:     c.ConfirmTimeout,
		ZebraDwell:         c.ZebraDwell,
	}
}

func envOr(key, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envDurationMS(key string, fallback time.Duration) time.Duration {
	n := envInt(key, -1)
	if n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}
