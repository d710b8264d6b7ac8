// Package config loads the line-oriented `key=value` text file §6
// describes. The format is deliberately not YAML/TOML — the teacher's
// viper-based HFTConfigManager (internal/config) is a poor fit for a
// literal key=value text format with per-key fallback-to-default
// semantics, so this package hand-rolls the line scanner the way the
// format calls for (see DESIGN.md), then validates the populated struct
// with github.com/go-playground/validator/v10 the way
// internal/validation.Validator does in the teacher repo.
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/abdoElHodaky/hftcore/internal/hftcore/errs"
)

// Config is the fully parsed, defaulted, and validated configuration.
type Config struct {
	Symbol   string `validate:"required"`
	Strategy string `validate:"required,oneof=market_making stat_arb"`
	LogFile  string `validate:"required"`

	ExchangeHost string
	ExchangePort int `validate:"gte=0,lte=65535"`

	SpreadBps  float64 `validate:"gte=0"`
	QuoteSize  uint32

	LookbackPeriod int     `validate:"gte=1"`
	EntryThreshold float64 `validate:"gt=0"`
	ExitThreshold  float64 `validate:"gte=0"`

	MaxPosition     int64   `validate:"gte=0"`
	MaxOrderSize    uint32
	MaxLoss         float64 `validate:"gte=0"`
	PriceCollarBps  float64 `validate:"gte=0"`
	MaxOrdersPerSec int     `validate:"gte=0"`
}

// Defaults returns the configuration used for any key the file omits or
// sets to a malformed numeric value (§7: MalformedValue falls back to
// default, never a hard failure).
func Defaults() Config {
	return Config{
		Symbol:          "BTC-USD",
		Strategy:        "market_making",
		LogFile:         "hftcore.log",
		ExchangeHost:    "localhost",
		ExchangePort:    0,
		SpreadBps:       10,
		QuoteSize:       100,
		LookbackPeriod:  20,
		EntryThreshold:  2.0,
		ExitThreshold:   0.5,
		MaxPosition:     1000,
		MaxOrderSize:    500,
		MaxLoss:         10000,
		PriceCollarBps:  50,
		MaxOrdersPerSec: 10,
	}
}

// Load reads and parses path. A missing file is fatal (§7: MissingFile),
// returned as an error so main can exit with code 1; a malformed numeric
// value for a recognized key silently falls back to its default instead
// of failing the whole load.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errs.Wrap(err, errs.CodeConfigMissing, "missing configuration file").WithDetail("path", path)
	}
	defer f.Close()

	cfg := Defaults()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		applyKey(&cfg, key, value)
	}
	if err := scanner.Err(); err != nil {
		return Config{}, errs.Wrap(err, errs.CodeConfigInvalid, "error reading configuration file")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, errs.Wrap(err, errs.CodeConfigInvalid, "configuration failed validation")
	}
	return cfg, nil
}

// applyKey sets one recognized key on cfg, falling back to the existing
// (default) value on a malformed numeric. Unknown keys are ignored.
func applyKey(cfg *Config, key, value string) {
	switch key {
	case "symbol":
		cfg.Symbol = value
	case "strategy":
		cfg.Strategy = value
	case "log_file":
		cfg.LogFile = value
	case "exchange_host":
		cfg.ExchangeHost = value
	case "exchange_port":
		setInt(&cfg.ExchangePort, value)
	case "spread_bps":
		setFloat(&cfg.SpreadBps, value)
	case "quote_size":
		setUint32(&cfg.QuoteSize, value)
	case "lookback_period":
		setInt(&cfg.LookbackPeriod, value)
	case "entry_threshold":
		setFloat(&cfg.EntryThreshold, value)
	case "exit_threshold":
		setFloat(&cfg.ExitThreshold, value)
	case "max_position":
		setInt64(&cfg.MaxPosition, value)
	case "max_order_size":
		setUint32(&cfg.MaxOrderSize, value)
	case "max_loss":
		setFloat(&cfg.MaxLoss, value)
	case "price_collar":
		setFloat(&cfg.PriceCollarBps, value)
	case "max_orders_per_sec":
		setInt(&cfg.MaxOrdersPerSec, value)
	}
}

func setInt(dst *int, raw string) {
	if v, err := strconv.Atoi(raw); err == nil {
		*dst = v
	}
}

func setInt64(dst *int64, raw string) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*dst = v
	}
}

func setUint32(dst *uint32, raw string) {
	if v, err := strconv.ParseUint(raw, 10, 32); err == nil {
		*dst = uint32(v)
	}
}

func setFloat(dst *float64, raw string) {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		*dst = v
	}
}
