package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	coinParamsFileENV = "COIN_PARAMS_FILE"
)

// EngineConfig — общие настройки движка. Пер-символьные пороги живут
// в отдельном файле коин-параметров.
type EngineConfig struct {
	InitialEquity   float64 `yaml:"initial_equity"`
	LookbackSeconds int     `yaml:"lookback_seconds"`
	ATRWindowTicks  int     `yaml:"atr_window_ticks"`
	BufferCapacity  int     `yaml:"buffer_capacity"`

	// генератор сигналов зовётся раз в SignalEveryTicks тиков и только
	// когда буфер накопил MinSignalTicks
	SignalEveryTicks int `yaml:"signal_every_ticks"`
	MinSignalTicks   int `yaml:"min_signal_ticks"`

	// ёмкость канала тиков воркера; при переполнении старые тики дропаются
	TickChanCapacity int `yaml:"tick_chan_capacity"`

	TakerFeeRate float64 `yaml:"taker_fee_rate"`
	MakerFeeRate float64 `yaml:"maker_fee_rate"`
	SlippagePct  float64 `yaml:"slippage_pct"`

	// дедлайны ордеров задаются через env (MARKET_ORDER_TIMEOUT и
	// LIMIT_ORDER_TIMEOUT), yaml.v2 строку "5s" в Duration не умеет
	MarketOrderTimeout time.Duration `yaml:"-"`
	LimitOrderTimeout  time.Duration `yaml:"-"`
}

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB string `yaml:"db_dsn"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	WSEndpoint     string       `yaml:"ws_endpoint"`
	CoinParamsFile string       `yaml:"coin_params_file"`
	Engine         EngineConfig `yaml:"engine"`
}

func Defaults() Config {
	cfg := Config{
		WSEndpoint:     "wss://fstream.binance.com/stream",
		CoinParamsFile: "configs/coins.yaml",
		Engine: EngineConfig{
			InitialEquity:      floatFromEnv("INITIAL_EQUITY", 10000),
			LookbackSeconds:    intFromEnv("LOOKBACK_SECONDS", 600),
			ATRWindowTicks:     intFromEnv("ATR_WINDOW_TICKS", 100),
			BufferCapacity:     intFromEnv("TICK_BUFFER_CAPACITY", 10000),
			SignalEveryTicks:   intFromEnv("SIGNAL_EVERY_TICKS", 10),
			MinSignalTicks:     intFromEnv("MIN_SIGNAL_TICKS", 100),
			TickChanCapacity:   intFromEnv("TICK_CHAN_CAPACITY", 1024),
			TakerFeeRate:       floatFromEnv("TAKER_FEE_RATE", 0.0005),
			MakerFeeRate:       floatFromEnv("MAKER_FEE_RATE", 0.0002),
			SlippagePct:        floatFromEnv("SLIPPAGE_PCT", 0.0001),
			MarketOrderTimeout: durationFromEnv("MARKET_ORDER_TIMEOUT", "5s"),
			LimitOrderTimeout:  durationFromEnv("LIMIT_ORDER_TIMEOUT", "30s"),
		},
	}
	return cfg
}

func NewConfig() (*Config, error) {
	config := Defaults()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		// без файла работаем на дефолтах + env
		log.Printf("[CONFIG] %v, using defaults", err)
	} else {
		defer func() {
			_ = file.Close()
		}()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(&config); err != nil {
			log.Fatalf("Failed to decode config file: %v", err)
		}
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if path := os.Getenv(coinParamsFileENV); path != "" {
		config.CoinParamsFile = path
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
