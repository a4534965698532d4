package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"forexbot/internal/adapters/logger" // Import the logger package for LogLevel
	"forexbot/internal/risk"
	"forexbot/internal/strategy"
)

// Broker names accepted in BROKER.
const (
	BrokerOanda = "oanda"
	BrokerPaper = "paper"
)

// Config holds all application configuration. It is immutable once loaded.
type Config struct {
	// Terminal
	Broker         string `validate:"oneof=oanda paper"`
	OandaToken     string
	OandaAccountID string
	OandaPractice  bool
	CallTimeout    time.Duration `validate:"gt=0"` // Upper bound for every terminal call

	// Trading Parameters
	Symbol          string  `validate:"required"`
	StopLossPips    float64 `validate:"gt=0"`
	TakeProfitPips  float64 `validate:"gt=0"`
	RiskPercent     float64 `validate:"gt=0,lte=100"` // Percent of balance risked per trade
	MagicNumber     int64   `validate:"gt=0"`         // Strategy tag attached to every order
	MinLot          float64 `validate:"gt=0"`
	DeviationPoints float64 `validate:"gte=0"` // Accepted slippage, in points
	OrderComment    string  `validate:"max=128"`

	// Strategy Parameters
	Timeframe     string  `validate:"required"`
	BarCount      int     `validate:"gt=0,lte=4999"` // One more is requested to skip the forming bar
	SMAPeriod     int     `validate:"gt=0"`
	RSIPeriod     int     `validate:"gt=0"`
	RSIOversold   float64 `validate:"gte=0,lte=100"`
	RSIOverbought float64 `validate:"gte=0,lte=100"`

	// Loop and circuit breaker
	LoopInterval   time.Duration `validate:"gt=0"`
	DailyMaxLoss   float64       `validate:"gt=0"`
	DailyResetHour int           `validate:"gte=0,lte=23"`

	// Instrument conventions for Symbol
	Instrument Instrument

	// Paper trading
	PaperBalance float64 `validate:"gt=0"`

	// Database
	DBPath string `validate:"required"`

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter

	// Metrics, empty disables the endpoint
	MetricsAddr string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Terminal
	cfg.Broker = strings.ToLower(getEnv("BROKER", BrokerPaper))
	cfg.OandaToken = getEnv("OANDA_TOKEN", "")
	cfg.OandaAccountID = getEnv("OANDA_ACCOUNT_ID", "")
	cfg.OandaPractice = getEnvAsBool("OANDA_PRACTICE", true) // Default to practice for safety

	callTimeoutSeconds, err := getEnvAsIntRequired("CALL_TIMEOUT_SECONDS", 30)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CALL_TIMEOUT_SECONDS: %v", err))
	}
	cfg.CallTimeout = time.Duration(callTimeoutSeconds) * time.Second

	// Trading Parameters
	cfg.Symbol = getEnv("SYMBOL", "EUR_USD")

	if cfg.StopLossPips, err = getEnvAsFloatRequired("STOP_LOSS_PIPS", 5); err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PIPS: %v", err))
	}
	if cfg.TakeProfitPips, err = getEnvAsFloatRequired("TAKE_PROFIT_PIPS", 10); err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PIPS: %v", err))
	}
	if cfg.RiskPercent, err = getEnvAsFloatRequired("RISK_PERCENT", 1.0); err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PERCENT: %v", err))
	}
	if cfg.MagicNumber, err = getEnvAsInt64Required("MAGIC_NUMBER", 123456); err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAGIC_NUMBER: %v", err))
	}
	if cfg.MinLot, err = getEnvAsFloatRequired("MIN_LOT", 0.01); err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_LOT: %v", err))
	}
	if cfg.DeviationPoints, err = getEnvAsFloatRequired("DEVIATION_POINTS", 5); err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEVIATION_POINTS: %v", err))
	}
	cfg.OrderComment = getEnv("ORDER_COMMENT", "Risk-Managed Algo Trade")

	// Strategy Parameters
	cfg.Timeframe = strings.ToUpper(getEnv("TIMEFRAME", "M5"))
	if cfg.BarCount, err = getEnvAsIntRequired("BAR_COUNT", 100); err != nil {
		errs = append(errs, fmt.Sprintf("invalid BAR_COUNT: %v", err))
	}
	if cfg.SMAPeriod, err = getEnvAsIntRequired("SMA_PERIOD", 50); err != nil {
		errs = append(errs, fmt.Sprintf("invalid SMA_PERIOD: %v", err))
	}
	if cfg.RSIPeriod, err = getEnvAsIntRequired("RSI_PERIOD", 14); err != nil {
		errs = append(errs, fmt.Sprintf("invalid RSI_PERIOD: %v", err))
	}
	cfg.RSIOversold = getEnvAsFloat("RSI_OVERSOLD", 30.0)
	cfg.RSIOverbought = getEnvAsFloat("RSI_OVERBOUGHT", 70.0)

	// Loop and circuit breaker
	loopMinutes, err := getEnvAsFloatRequired("LOOP_INTERVAL_MINUTES", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOOP_INTERVAL_MINUTES: %v", err))
	}
	cfg.LoopInterval = time.Duration(loopMinutes * float64(time.Minute))

	if cfg.DailyMaxLoss, err = getEnvAsFloatRequired("DAILY_MAX_LOSS", 50.0); err != nil {
		errs = append(errs, fmt.Sprintf("invalid DAILY_MAX_LOSS: %v", err))
	}
	if cfg.DailyResetHour, err = getEnvAsIntRequired("DAILY_RESET_HOUR", 0); err != nil {
		errs = append(errs, fmt.Sprintf("invalid DAILY_RESET_HOUR: %v", err))
	}

	// Instrument table
	instruments := DefaultInstruments()
	if path := getEnv("INSTRUMENTS_FILE", ""); path != "" {
		loaded, err := LoadInstruments(path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid INSTRUMENTS_FILE: %v", err))
		} else {
			instruments = instruments.Merge(loaded)
		}
	}
	cfg.Instrument = instruments.Lookup(cfg.Symbol)
	if pipFactor := getEnvAsFloat("PIP_FACTOR", 0); pipFactor > 0 {
		cfg.Instrument.PipFactor = pipFactor
	}

	// Paper trading
	cfg.PaperBalance = getEnvAsFloat("PAPER_BALANCE", 10000.0)

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/forexbot.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Metrics
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	errs = append(errs, cfg.validate()...)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

var validate = validator.New()

// validate runs struct-tag and cross-field checks and returns one message per violation.
func (c *Config) validate() []string {
	var errs []string
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	// Paper mode still reads market data from OANDA.
	if c.OandaToken == "" || c.OandaAccountID == "" {
		errs = append(errs, "OANDA_TOKEN and OANDA_ACCOUNT_ID must be set")
	}
	if c.RSIOversold >= c.RSIOverbought {
		errs = append(errs, "RSI_OVERSOLD must be less than RSI_OVERBOUGHT")
	}
	if c.BarCount <= c.SMAPeriod || c.BarCount <= c.RSIPeriod {
		errs = append(errs, "BAR_COUNT must exceed SMA_PERIOD and RSI_PERIOD")
	}
	return errs
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsInt64Required(key string, defaultValue int64) (int64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// RiskConfig returns the sizing, order and circuit-breaker parameters.
func (c *Config) RiskConfig() risk.Config {
	return risk.Config{
		RiskPercent:     c.RiskPercent,
		StopLossPips:    c.StopLossPips,
		TakeProfitPips:  c.TakeProfitPips,
		PipFactor:       c.Instrument.PipFactor,
		MinLot:          c.MinLot,
		DeviationPoints: c.DeviationPoints,
		Magic:           c.MagicNumber,
		Comment:         c.OrderComment,
		DailyMaxLoss:    c.DailyMaxLoss,
		DailyResetHour:  c.DailyResetHour,
	}
}

// StrategyConfig returns the indicator periods and RSI thresholds.
func (c *Config) StrategyConfig() strategy.Config {
	return strategy.Config{
		SMAPeriod:     c.SMAPeriod,
		RSIPeriod:     c.RSIPeriod,
		RSIOverbought: c.RSIOverbought,
		RSIOversold:   c.RSIOversold,
	}
}
