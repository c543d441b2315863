package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// FeatureFlags manages runtime feature toggles.
// Every flag maps to an environment variable: "notify.daily_reminder" is
// FEATURE_NOTIFY_DAILY_REMINDER.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	FeatureDailyReminder     = "notify.daily_reminder"      // 20:15 attendance digest
	FeatureDailyLogReport    = "notify.daily_log_report"    // midnight log dump to the admin
	FeatureAutoBlock         = "security.auto_block"        // block users exceeding the command limit
	FeaturePhoneVerification = "security.phone_verification" // require a shared contact before use
	FeatureStreaks           = "gamification.streaks"       // streak lines in attendance cards
)

var featureDefaults = []Feature{
	{Name: FeatureDailyReminder, Description: "Send the daily attendance reminder", Enabled: true},
	{Name: FeatureDailyLogReport, Description: "Send the last 24h of logs to the admin", Enabled: true},
	{Name: FeatureAutoBlock, Description: "Automatically block command spammers", Enabled: true},
	{Name: FeaturePhoneVerification, Description: "Require phone verification for protected commands", Enabled: true},
	{Name: FeatureStreaks, Description: "Show attendance streaks", Enabled: true},
}

// NewFeatureFlags returns flags at their defaults.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature, len(featureDefaults))}
	for _, f := range featureDefaults {
		ff.features[f.Name] = &f
	}
	return ff
}

// LoadFeatureFlags reads overrides from v.
func LoadFeatureFlags(v *viper.Viper) *FeatureFlags {
	ff := NewFeatureFlags()
	for name, f := range ff.features {
		f.Enabled = v.GetBool(featureNameToEnvKey(name))
	}
	return ff
}

func setFeatureDefaults(v *viper.Viper) {
	for _, f := range featureDefaults {
		v.SetDefault(featureNameToEnvKey(f.Name), f.Enabled)
	}
}

func featureNameToEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	if ff == nil {
		return false
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	f, ok := ff.features[name]
	return ok && f.Enabled
}

// Set toggles a feature at runtime.
func (ff *FeatureFlags) Set(name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if f, ok := ff.features[name]; ok {
		f.Enabled = enabled
	}
}

// List returns all features sorted by name.
func (ff *FeatureFlags) List() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
