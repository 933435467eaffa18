package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries the school-level billing defaults. New students are
// created with these; the per-student policy columns override them afterwards.
type BillingConfig struct {
	Currency              string `mapstructure:"currency"`
	Timezone              string `mapstructure:"timezone"`
	DefaultPaymentDueDays int    `mapstructure:"defaultPaymentDueDays"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Currency:              "PLN",
		Timezone:              "Europe/Warsaw",
		DefaultPaymentDueDays: 14,
	}
}

// BillingConfigHolder exposes the current billing defaults and hot-reloads
// them when the config file changes.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/lingodesk/config") // Volume-mounted config
	v.AddConfigPath("/etc/lingodesk")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("LINGODESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingConfig()
		v.SetDefault("billing.currency", defaults.Currency)
		v.SetDefault("billing.timezone", defaults.Timezone)
		v.SetDefault("billing.defaultPaymentDueDays", defaults.DefaultPaymentDueDays)
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config, without file watching.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

// Location resolves the organization's timezone for calendar arithmetic.
// Falls back to UTC when the name does not resolve.
func (h *BillingConfigHolder) Location() *time.Location {
	loc, err := time.LoadLocation(h.Get().Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		return errors.New("billing.timezone cannot be empty")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return err
	}
	if cfg.DefaultPaymentDueDays < 0 {
		return errors.New("billing.defaultPaymentDueDays cannot be negative")
	}
	return nil
}
