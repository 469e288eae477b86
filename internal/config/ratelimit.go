package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Endpoint classes guarded by admission control.
const (
	ClassPublic       = "public"
	ClassContact      = "contact"
	ClassRegistration = "registration"
	ClassAdmin        = "admin"
)

// Identity strategies for building the limiter identity.
const (
	StrategyIP     = "ip"
	StrategyIPUser = "ip_user"
)

// RateClass is the sliding-window policy of one endpoint class.
type RateClass struct {
	Name     string
	Requests int
	Window   time.Duration
	Strategy string
}

type RateLimitConfig struct {
	Enabled bool
	Prefix  string
	Classes map[string]RateClass
}

// Class returns the policy for name, falling back to the public class.
func (c RateLimitConfig) Class(name string) RateClass {
	if rc, ok := c.Classes[name]; ok {
		return rc
	}
	return c.Classes[ClassPublic]
}

var classDefaults = []RateClass{
	{Name: ClassPublic, Requests: 10, Window: time.Minute, Strategy: StrategyIP},
	{Name: ClassContact, Requests: 5, Window: time.Minute, Strategy: StrategyIP},
	{Name: ClassRegistration, Requests: 3, Window: time.Minute, Strategy: StrategyIP},
	{Name: ClassAdmin, Requests: 30, Window: time.Minute, Strategy: StrategyIPUser},
}

// LoadRateLimitConfig builds the class table from defaults overridden by
// RATELIMIT_<CLASS>_REQUESTS, RATELIMIT_<CLASS>_WINDOW and
// RATELIMIT_<CLASS>_STRATEGY.
func LoadRateLimitConfig() RateLimitConfig {
	v := viper.New()
	v.SetEnvPrefix("ratelimit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("enabled", true)
	v.SetDefault("prefix", "rate_limit")
	for _, d := range classDefaults {
		v.SetDefault(d.Name+".requests", d.Requests)
		v.SetDefault(d.Name+".window", d.Window)
		v.SetDefault(d.Name+".strategy", d.Strategy)
	}

	cfg := RateLimitConfig{
		Enabled: v.GetBool("enabled"),
		Prefix:  v.GetString("prefix"),
		Classes: make(map[string]RateClass, len(classDefaults)),
	}
	for _, d := range classDefaults {
		rc := RateClass{
			Name:     d.Name,
			Requests: v.GetInt(d.Name + ".requests"),
			Window:   v.GetDuration(d.Name + ".window"),
			Strategy: strings.ToLower(v.GetString(d.Name + ".strategy")),
		}
		if rc.Requests < 1 {
			rc.Requests = 1
		}
		if rc.Window < time.Second {
			rc.Window = time.Second
		}
		if rc.Strategy != StrategyIP && rc.Strategy != StrategyIPUser {
			rc.Strategy = d.Strategy
		}
		cfg.Classes[d.Name] = rc
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}
func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}
func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
