// Package config loads process settings from the environment and an
// optional TOML tuning file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	RedisAddr   string
	AppURL      string
	// Store selects the backend: "postgres" or "memory".
	Store  string
	SMTP   SMTP
	Tuning Tuning
}

type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether outbound mail is configured.
func (s SMTP) Enabled() bool { return s.Host != "" }

// Tuning holds the domain knobs. Zero values never survive Load.
type Tuning struct {
	UrgencyWindows      map[domain.UrgencyTier]time.Duration
	RatingWeight        float64
	TierBonus           map[domain.SubscriptionTier]float64
	OnlineBonus         float64
	EligibleTiers       []domain.SubscriptionTier
	DispatchParallelism int
	DeliveryTimeout     time.Duration
	NoticeStaleAfter    time.Duration
	ObligationDue       time.Duration
	ReviewEditWindow    time.Duration
	SweepInterval       time.Duration
	MailPerSecond       float64
	MailBurst           int
}

// DefaultTuning returns the production defaults.
func DefaultTuning() Tuning {
	return Tuning{
		UrgencyWindows: map[domain.UrgencyTier]time.Duration{
			domain.UrgencyEmergency: 24 * time.Hour,
			domain.UrgencyHigh:      72 * time.Hour,
			domain.UrgencyMedium:    120 * time.Hour,
			domain.UrgencyLow:       168 * time.Hour,
		},
		RatingWeight: 10,
		TierBonus: map[domain.SubscriptionTier]float64{
			domain.TierFree:    0,
			domain.TierBasic:   5,
			domain.TierPremium: 15,
		},
		OnlineBonus:         8,
		EligibleTiers:       []domain.SubscriptionTier{domain.TierBasic, domain.TierPremium},
		DispatchParallelism: 8,
		DeliveryTimeout:     10 * time.Second,
		NoticeStaleAfter:    5 * time.Minute,
		ObligationDue:       obligationDue,
		ReviewEditWindow:    48 * time.Hour,
		SweepInterval:       time.Minute,
		MailPerSecond:       5,
		MailBurst:           5,
	}
}

const (
	maxEmergencyWindow = 24 * time.Hour
	maxLowWindow       = 168 * time.Hour
	obligationDue      = 7 * 24 * time.Hour
)

// Validate checks cross-field constraints.
func (t Tuning) Validate() error {
	var prev time.Duration
	for _, tier := range domain.UrgencyTiers {
		w, ok := t.UrgencyWindows[tier]
		if !ok || w <= 0 {
			return fmt.Errorf("urgency window for %s must be positive", tier)
		}
		if w < prev {
			return fmt.Errorf("urgency window for %s (%s) is shorter than a more urgent tier (%s)", tier, w, prev)
		}
		prev = w
	}
	if w := t.UrgencyWindows[domain.UrgencyEmergency]; w > maxEmergencyWindow {
		return fmt.Errorf("urgency window for emergency (%s) exceeds %s", w, maxEmergencyWindow)
	}
	if w := t.UrgencyWindows[domain.UrgencyLow]; w > maxLowWindow {
		return fmt.Errorf("urgency window for low (%s) exceeds %s", w, maxLowWindow)
	}
	if t.ObligationDue != obligationDue {
		return fmt.Errorf("obligation due must be %s, got %s", obligationDue, t.ObligationDue)
	}
	if t.DispatchParallelism < 1 {
		return errors.New("dispatch parallelism must be at least 1")
	}
	for _, tier := range t.EligibleTiers {
		if !tier.Valid() {
			return fmt.Errorf("unknown eligible tier %q", tier)
		}
	}
	if t.ReviewEditWindow <= 0 || t.SweepInterval <= 0 {
		return errors.New("review edit window and sweep interval must be positive")
	}
	return nil
}

// Load reads .env (if present), the environment, and FIXIA_CONFIG.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	cfg := Config{
		Port:      getenv("PORT", "8080"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		AppURL:    getenv("APP_URL", "http://localhost:3000"),
		Store:     getenv("STORE", "postgres"),
		SMTP: SMTP{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getint("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getenv("SMTP_FROM", "no-reply@fixia.app"),
		},
		Tuning: DefaultTuning(),
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && os.Getenv("DB_HOST") != "" {
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"), getenv("DB_PORT", "5432"), os.Getenv("DB_NAME"))
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" && os.Getenv("REDIS_HOST") != "" {
		cfg.RedisAddr = os.Getenv("REDIS_HOST") + ":" + getenv("REDIS_PORT", "6379")
	}

	if path := os.Getenv("FIXIA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := ApplyTOML(&cfg.Tuning, data); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.Store != "memory" && cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL or DB_HOST is required unless STORE=memory")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// tuningFile is the on-disk shape. Durations are whole hours or seconds so
// the file stays readable.
type tuningFile struct {
	UrgencyWindowsHours map[string]int `toml:"urgency_windows_hours"`
	Ranking             struct {
		RatingWeight *float64           `toml:"rating_weight"`
		OnlineBonus  *float64           `toml:"online_bonus"`
		TierBonus    map[string]float64 `toml:"tier_bonus"`
	} `toml:"ranking"`
	Matching struct {
		EligibleTiers          []string `toml:"eligible_tiers"`
		Parallelism            int      `toml:"parallelism"`
		DeliveryTimeoutSeconds int      `toml:"delivery_timeout_seconds"`
		NoticeStaleSeconds     int      `toml:"notice_stale_seconds"`
	} `toml:"matching"`
	Reviews struct {
		EditWindowHours int `toml:"edit_window_hours"`
	} `toml:"reviews"`
	Sweeps struct {
		IntervalSeconds int `toml:"interval_seconds"`
	} `toml:"sweeps"`
	Mail struct {
		PerSecond float64 `toml:"per_second"`
		Burst     int     `toml:"burst"`
	} `toml:"mail"`
}

// ApplyTOML overlays the keys present in data onto t.
func ApplyTOML(t *Tuning, data []byte) error {
	var f tuningFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return err
	}
	for k, h := range f.UrgencyWindowsHours {
		tier := domain.UrgencyTier(k)
		if !tier.Valid() {
			return fmt.Errorf("unknown urgency tier %q", k)
		}
		t.UrgencyWindows[tier] = time.Duration(h) * time.Hour
	}
	if f.Ranking.RatingWeight != nil {
		t.RatingWeight = *f.Ranking.RatingWeight
	}
	if f.Ranking.OnlineBonus != nil {
		t.OnlineBonus = *f.Ranking.OnlineBonus
	}
	for k, v := range f.Ranking.TierBonus {
		tier := domain.SubscriptionTier(k)
		if !tier.Valid() {
			return fmt.Errorf("unknown subscription tier %q", k)
		}
		t.TierBonus[tier] = v
	}
	if f.Matching.EligibleTiers != nil {
		t.EligibleTiers = t.EligibleTiers[:0]
		for _, s := range f.Matching.EligibleTiers {
			t.EligibleTiers = append(t.EligibleTiers, domain.SubscriptionTier(s))
		}
	}
	setInt(&t.DispatchParallelism, f.Matching.Parallelism)
	setDuration(&t.DeliveryTimeout, f.Matching.DeliveryTimeoutSeconds, time.Second)
	setDuration(&t.NoticeStaleAfter, f.Matching.NoticeStaleSeconds, time.Second)
	setDuration(&t.ReviewEditWindow, f.Reviews.EditWindowHours, time.Hour)
	setDuration(&t.SweepInterval, f.Sweeps.IntervalSeconds, time.Second)
	if f.Mail.PerSecond > 0 {
		t.MailPerSecond = f.Mail.PerSecond
	}
	setInt(&t.MailBurst, f.Mail.Burst)
	return nil
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v int, unit time.Duration) {
	if v > 0 {
		*dst = time.Duration(v) * unit
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
