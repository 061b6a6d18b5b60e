package slo

import (
	"time"

	"github.com/samijaber1/aegis-tracker/internal/indicator"
)

// Document is the on-disk shape of a definitions file.
type Document struct {
	APIVersion string          `yaml:"apiVersion" json:"apiVersion"`
	Kind       string          `yaml:"kind" json:"kind"`
	SLOs       []RawDefinition `yaml:"slos" json:"slos"`
}

// RawDefinition is a loosely-typed SLO definition as written by operators.
// It is only ever consumed by Normalize.
type RawDefinition struct {
	ID                 string         `yaml:"id,omitempty" json:"id,omitempty"`
	Slug               string         `yaml:"slug,omitempty" json:"slug,omitempty"`
	Name               string         `yaml:"name,omitempty" json:"name,omitempty"`
	Description        string         `yaml:"description,omitempty" json:"description,omitempty"`
	TargetAvailability *float64       `yaml:"targetAvailability,omitempty" json:"targetAvailability,omitempty"`
	WindowMinutes      *float64       `yaml:"windowMinutes,omitempty" json:"windowMinutes,omitempty"`
	Window             string         `yaml:"window,omitempty" json:"window,omitempty"` // e.g. "1h"; used when windowMinutes is absent
	Indicator          RawIndicator   `yaml:"indicator" json:"indicator"`
	Alerting           *RawAlerting   `yaml:"alerting,omitempty" json:"alerting,omitempty"`
	Tags               []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Metadata           map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// RawIndicator is the loosely-typed indicator block.
type RawIndicator struct {
	Type                 string       `yaml:"type,omitempty" json:"type,omitempty"`
	RoutePattern         string       `yaml:"routePattern" json:"routePattern"`
	RouteFlags           string       `yaml:"routeFlags,omitempty" json:"routeFlags,omitempty"`
	Methods              []string     `yaml:"methods,omitempty" json:"methods,omitempty"`
	ExcludeRoutePatterns []RawPattern `yaml:"excludeRoutePatterns,omitempty" json:"excludeRoutePatterns,omitempty"`
	Treat4xxAsFailures   bool         `yaml:"treat4xxAsFailures,omitempty" json:"treat4xxAsFailures,omitempty"`
	SuccessStatusCodes   []int        `yaml:"successStatusCodes,omitempty" json:"successStatusCodes,omitempty"`
	FailureStatusCodes   []int        `yaml:"failureStatusCodes,omitempty" json:"failureStatusCodes,omitempty"`
}

// RawAlerting is the loosely-typed alerting block. Nil fields take the
// registry defaults.
type RawAlerting struct {
	BurnRateWarning  *float64 `yaml:"burnRateWarning,omitempty" json:"burnRateWarning,omitempty"`
	BurnRateCritical *float64 `yaml:"burnRateCritical,omitempty" json:"burnRateCritical,omitempty"`
	MinRequests      *float64 `yaml:"minRequests,omitempty" json:"minRequests,omitempty"`
}

// Settings are the process-wide defaults applied during normalization.
type Settings struct {
	TargetAvailability float64
	WindowMinutes      int
	BurnRateWarning    float64
	BurnRateCritical   float64
	MinRequests        int
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		TargetAvailability: 0.995,
		WindowMinutes:      60,
		BurnRateWarning:    2,
		BurnRateCritical:   5,
		MinRequests:        20,
	}
}

// Alerting holds validated alerting thresholds.
type Alerting struct {
	BurnRateWarning  float64 `json:"burnRateWarning"`
	BurnRateCritical float64 `json:"burnRateCritical"`
	MinRequests      int     `json:"minRequests"`
}

// Definition is a canonical, immutable SLO definition. Only Normalize
// produces one.
type Definition struct {
	ID                 string
	Name               string
	Description        string
	TargetAvailability float64
	WindowMinutes      int
	Indicator          *indicator.HTTP
	Alerting           Alerting
	Tags               []string
	Metadata           map[string]any
}

// Window returns the rolling window length.
func (d *Definition) Window() time.Duration {
	return time.Duration(d.WindowMinutes) * time.Minute
}

// PublicDefinition is the serialisable view of a Definition.
type PublicDefinition struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	TargetAvailability float64         `json:"targetAvailability"`
	WindowMinutes      int             `json:"windowMinutes"`
	Indicator          PublicIndicator `json:"indicator"`
	Alerting           Alerting        `json:"alerting"`
	Tags               []string        `json:"tags"`
	Metadata           map[string]any  `json:"metadata,omitempty"`
}

// PublicIndicator is the serialisable view of an HTTP indicator.
type PublicIndicator struct {
	Type                 string              `json:"type"`
	RoutePattern         string              `json:"routePattern"`
	RouteFlags           string              `json:"routeFlags,omitempty"`
	Methods              []string            `json:"methods"`
	ExcludeRoutePatterns []indicator.Pattern `json:"excludeRoutePatterns"`
	Treat4xxAsFailures   bool                `json:"treat4xxAsFailures"`
	SuccessStatusCodes   []int               `json:"successStatusCodes"`
	FailureStatusCodes   []int               `json:"failureStatusCodes"`
}

// Public returns the serialisable view of d.
func (d *Definition) Public() PublicDefinition {
	ind := d.Indicator
	return PublicDefinition{
		ID:                 d.ID,
		Name:               d.Name,
		Description:        d.Description,
		TargetAvailability: d.TargetAvailability,
		WindowMinutes:      d.WindowMinutes,
		Indicator: PublicIndicator{
			Type:                 indicator.TypeHTTP,
			RoutePattern:         ind.Route.Source,
			RouteFlags:           ind.Route.Flags,
			Methods:              ind.Methods(),
			ExcludeRoutePatterns: append([]indicator.Pattern{}, ind.Exclude...),
			Treat4xxAsFailures:   ind.Treat4xxAsFailures,
			SuccessStatusCodes:   ind.SuccessStatusCodes(),
			FailureStatusCodes:   ind.FailureStatusCodes(),
		},
		Alerting: d.Alerting,
		Tags:     append([]string{}, d.Tags...),
		Metadata: cloneMetadata(d.Metadata),
	}
}

// cloneMetadata deep-copies the nested maps and lists YAML decoding produces.
func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMetadata(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// ValidationError is a configuration error for one definition or file.
type ValidationError struct {
	Source  string // file path or definition id
	Path    string // field path, e.g. alerting.burnRateCritical
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	switch {
	case e.Source != "" && e.Path != "":
		return e.Source + ": " + e.Path + ": " + e.Message
	case e.Path != "":
		return e.Path + ": " + e.Message
	case e.Source != "":
		return e.Source + ": " + e.Message
	default:
		return e.Message
	}
}
