package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/eliseohh/jikanwaribot/internal/timetable"
)

// Config holds all runtime configuration of the bot.
// Values come from config.yaml, JIKANWARI_* env vars and defaults.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Store    StoreConfig    `mapstructure:"store"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Semester SemesterConfig `mapstructure:"semester"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Absence  AbsenceConfig  `mapstructure:"absence"`
	Log      LogConfig      `mapstructure:"log"`
}

type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type CatalogConfig struct {
	Dir            string        `mapstructure:"dir"`
	Watch          bool          `mapstructure:"watch"`
	Debounce       time.Duration `mapstructure:"debounce"`
	ResyncInterval time.Duration `mapstructure:"resync_interval"`
}

type SemesterConfig struct {
	Split       bool   `mapstructure:"split"`
	ChangeMonth int    `mapstructure:"change_month"`
	ChangeDay   int    `mapstructure:"change_day"`
	Timezone    string `mapstructure:"timezone"`
}

func (s SemesterConfig) Cutover() timetable.Cutover {
	return timetable.Cutover{ChangeMonth: s.ChangeMonth, ChangeDay: s.ChangeDay}
}

// Location resolves Timezone; callers run after Validate.
func (s SemesterConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type LedgerConfig struct {
	PreserveOnAdd bool `mapstructure:"preserve_on_add"`
}

type AbsenceConfig struct {
	Scales []int `mapstructure:"scales"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. Priority: env > config file > defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", "10s")

	v.SetDefault("store.path", "./jikanwari.db")

	v.SetDefault("catalog.dir", "./catalog")
	v.SetDefault("catalog.watch", true)
	v.SetDefault("catalog.debounce", "500ms")
	v.SetDefault("catalog.resync_interval", "5m")

	v.SetDefault("semester.split", true)
	v.SetDefault("semester.change_month", 10)
	v.SetDefault("semester.change_day", 9)
	v.SetDefault("semester.timezone", "Asia/Tokyo")

	v.SetDefault("ledger.preserve_on_add", false)

	v.SetDefault("absence.scales", []int{1, 2})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("JIKANWARI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Semester.Cutover().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := time.LoadLocation(c.Semester.Timezone); err != nil {
		return fmt.Errorf("config: semester.timezone: %w", err)
	}
	if len(c.Absence.Scales) == 0 {
		return fmt.Errorf("config: absence.scales must not be empty")
	}
	for _, s := range c.Absence.Scales {
		if s <= 0 {
			return fmt.Errorf("config: absence.scales must be positive, got %d", s)
		}
	}
	if c.Store.Path == "" {
		return fmt.Errorf("config: store.path must be set")
	}
	if c.Catalog.Debounce <= 0 {
		return fmt.Errorf("config: catalog.debounce must be positive")
	}
	return nil
}
