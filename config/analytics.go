package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"craftfolio/analytics/models"
)

// Thresholds are the alert cut points evaluated against every finished
// report. Fields left out of the config file keep their defaults; an
// explicit value, including 0, is honored as written.
type Thresholds struct {
	MaxBounceRate       float64 `yaml:"maxBounceRate"`
	MinConversionRate   float64 `yaml:"minConversionRate"`
	MinPerformanceScore float64 `yaml:"minPerformanceScore"`
	MaxErrorRate        float64 `yaml:"maxErrorRate"`
}

// UnmarshalYAML seeds the defaults before decoding, so only the keys
// actually present in the file overwrite them. This is what lets an
// operator disable a check by setting its threshold to 0.
func (t *Thresholds) UnmarshalYAML(value *yaml.Node) error {
	type plain Thresholds
	seeded := plain(DefaultThresholds())
	if err := value.Decode(&seeded); err != nil {
		return err
	}
	*t = Thresholds(seeded)
	return nil
}

// SourcePattern maps a referrer substring to a traffic source label. The
// list is ordered; first match wins.
type SourcePattern struct {
	Match  string `yaml:"match"`
	Source string `yaml:"source"`
}

// FunnelConfig is one configured conversion funnel. Step order is fixed by
// this configuration, never inferred from event timestamps.
type FunnelConfig struct {
	Name  string              `yaml:"name"`
	Steps []models.FunnelStep `yaml:"steps"`
}

// AnalyticsConfig is the operator-editable analytics definition file.
type AnalyticsConfig struct {
	Funnels        []FunnelConfig  `yaml:"funnels"`
	Goals          []string        `yaml:"goals"`
	Thresholds     Thresholds      `yaml:"thresholds"`
	SourcePatterns []SourcePattern `yaml:"sourcePatterns"`
	TopN           int             `yaml:"topN"`
}

// DefaultThresholds mirrors the documented alerting defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxBounceRate:       0.70,
		MinConversionRate:   0.02,
		MinPerformanceScore: 70,
		MaxErrorRate:        0.01,
	}
}

// DefaultSourcePatterns classifies the common search and social referrers.
// An empty referrer is "Direct"; anything unmatched is "Other".
func DefaultSourcePatterns() []SourcePattern {
	return []SourcePattern{
		{Match: "google.", Source: "Organic Search"},
		{Match: "bing.", Source: "Organic Search"},
		{Match: "duckduckgo.", Source: "Organic Search"},
		{Match: "yahoo.", Source: "Organic Search"},
		{Match: "facebook.", Source: "Social"},
		{Match: "instagram.", Source: "Social"},
		{Match: "twitter.", Source: "Social"},
		{Match: "x.com", Source: "Social"},
		{Match: "linkedin.", Source: "Social"},
		{Match: "t.co", Source: "Social"},
		{Match: "reddit.", Source: "Social"},
	}
}

// DefaultAnalyticsConfig is used when no analytics file is configured.
func DefaultAnalyticsConfig() *AnalyticsConfig {
	return &AnalyticsConfig{
		Funnels: []FunnelConfig{
			{
				Name: "signup",
				Steps: []models.FunnelStep{
					{Name: "Visited", Event: models.EventPageView},
					{Name: "Started signup", Event: "signup_started"},
					{Name: "Completed signup", Event: models.EventGoalCompleted},
				},
			},
		},
		Goals:          []string{"signup", "purchase", "publish_portfolio"},
		Thresholds:     DefaultThresholds(),
		SourcePatterns: DefaultSourcePatterns(),
		TopN:           10,
	}
}

// LoadAnalytics reads the analytics definition file. A missing path falls
// back to defaults; a malformed file is a startup error.
func LoadAnalytics(path string) (*AnalyticsConfig, error) {
	if path == "" {
		return DefaultAnalyticsConfig(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultAnalyticsConfig(), nil
		}
		return nil, fmt.Errorf("failed to read analytics config %s: %w", path, err)
	}

	cfg := &AnalyticsConfig{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse analytics config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid analytics config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *AnalyticsConfig) applyDefaults() {
	// Files without a thresholds block never hit Thresholds.UnmarshalYAML.
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = DefaultThresholds()
	}
	if len(c.SourcePatterns) == 0 {
		c.SourcePatterns = DefaultSourcePatterns()
	}
	if c.TopN <= 0 {
		c.TopN = 10
	}
}

func (c *AnalyticsConfig) validate() error {
	for _, f := range c.Funnels {
		if f.Name == "" {
			return fmt.Errorf("funnel with empty name")
		}
		if len(f.Steps) == 0 {
			return fmt.Errorf("funnel %q has no steps", f.Name)
		}
		for _, s := range f.Steps {
			if s.Event == "" {
				return fmt.Errorf("funnel %q has a step with no event", f.Name)
			}
		}
	}
	return nil
}
