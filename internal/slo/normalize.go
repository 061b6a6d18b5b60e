package slo

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/samijaber1/aegis-tracker/internal/indicator"
)

const (
	minTargetAvailability = 0.001
	maxTargetAvailability = 0.9999
	minWindowMinutes      = 5
	minStatusCode         = 100
	maxStatusCode         = 599
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveID builds the canonical id from the first non-empty of id, slug and
// name: lower-cased, runs of non-alphanumerics collapsed to one hyphen,
// leading and trailing hyphens trimmed.
func DeriveID(raw RawDefinition) string {
	for _, candidate := range []string{raw.ID, raw.Slug, raw.Name} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		return slugify(candidate)
	}
	return ""
}

func slugify(s string) string {
	s = nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// Normalize validates raw against settings and returns the canonical
// definition. Duplicate ids are detected by the registry, not here.
func Normalize(raw RawDefinition, settings Settings) (*Definition, error) {
	id := DeriveID(raw)
	if id == "" {
		return nil, ValidationError{
			Source:  raw.Name,
			Path:    "id",
			Message: "definition requires an id, slug or name with at least one alphanumeric character",
		}
	}

	fail := func(path, format string, args ...any) (*Definition, error) {
		return nil, ValidationError{Source: id, Path: path, Message: fmt.Sprintf(format, args...)}
	}

	windowMinutes := settings.WindowMinutes
	switch {
	case raw.WindowMinutes != nil && isFinite(*raw.WindowMinutes):
		windowMinutes = int(math.Trunc(*raw.WindowMinutes))
	case raw.WindowMinutes == nil && raw.Window != "":
		d, err := ParseDuration(raw.Window)
		if err != nil {
			return fail("window", "%v", err)
		}
		windowMinutes = int(d.Minutes())
	}
	if windowMinutes < minWindowMinutes {
		windowMinutes = minWindowMinutes
	}

	alerting, err := normalizeAlerting(raw.Alerting, settings)
	if err != nil {
		return fail(err.path, "%s", err.message)
	}

	ind, ierr := normalizeIndicator(raw.Indicator)
	if ierr != nil {
		return fail(ierr.path, "%s", ierr.message)
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = id
	}

	return &Definition{
		ID:                 id,
		Name:               name,
		Description:        strings.TrimSpace(raw.Description),
		TargetAvailability: normalizeTarget(raw.TargetAvailability, settings.TargetAvailability),
		WindowMinutes:      windowMinutes,
		Indicator:          ind,
		Alerting:           alerting,
		Tags:               normalizeTags(raw.Tags),
		Metadata:           cloneMetadata(raw.Metadata),
	}, nil
}

type fieldError struct {
	path    string
	message string
}

func normalizeTarget(v *float64, fallback float64) float64 {
	if v == nil || !isFinite(*v) {
		return fallback
	}
	return math.Min(maxTargetAvailability, math.Max(minTargetAvailability, *v))
}

func normalizeAlerting(raw *RawAlerting, settings Settings) (Alerting, *fieldError) {
	a := Alerting{
		BurnRateWarning:  settings.BurnRateWarning,
		BurnRateCritical: settings.BurnRateCritical,
		MinRequests:      settings.MinRequests,
	}
	if raw != nil {
		if raw.BurnRateWarning != nil {
			a.BurnRateWarning = *raw.BurnRateWarning
		}
		if raw.BurnRateCritical != nil {
			a.BurnRateCritical = *raw.BurnRateCritical
		}
		if raw.MinRequests != nil && isFinite(*raw.MinRequests) {
			a.MinRequests = int(math.Trunc(*raw.MinRequests))
		}
	}
	if a.MinRequests < 0 {
		a.MinRequests = 0
	}

	if !isFinite(a.BurnRateWarning) || a.BurnRateWarning <= 0 {
		return a, &fieldError{"alerting.burnRateWarning", fmt.Sprintf("must be a positive number, got %v", a.BurnRateWarning)}
	}
	if !isFinite(a.BurnRateCritical) || a.BurnRateCritical <= 0 {
		return a, &fieldError{"alerting.burnRateCritical", fmt.Sprintf("must be a positive number, got %v", a.BurnRateCritical)}
	}
	if a.BurnRateCritical < a.BurnRateWarning {
		return a, &fieldError{"alerting.burnRateCritical", fmt.Sprintf(
			"burnRateCritical (%v) must be >= burnRateWarning (%v)", a.BurnRateCritical, a.BurnRateWarning)}
	}
	return a, nil
}

func normalizeIndicator(raw RawIndicator) (*indicator.HTTP, *fieldError) {
	kind := strings.ToLower(strings.TrimSpace(raw.Type))
	if kind != "" && kind != indicator.TypeHTTP {
		return nil, &fieldError{"indicator.type", fmt.Sprintf("unknown indicator type %q", raw.Type)}
	}

	if strings.TrimSpace(raw.RoutePattern) == "" {
		return nil, &fieldError{"indicator.routePattern", "route pattern is required"}
	}
	route, err := indicator.CompilePattern(raw.RoutePattern, raw.RouteFlags)
	if err != nil {
		return nil, &fieldError{"indicator.routePattern", err.Error()}
	}

	exclude := make([]indicator.Pattern, 0, len(raw.ExcludeRoutePatterns))
	seenExclude := make(map[RawPattern]bool)
	for i, ex := range raw.ExcludeRoutePatterns {
		if seenExclude[ex] {
			continue
		}
		seenExclude[ex] = true
		p, err := indicator.CompilePattern(ex.Pattern, ex.Flags)
		if err != nil {
			return nil, &fieldError{fmt.Sprintf("indicator.excludeRoutePatterns[%d]", i), err.Error()}
		}
		exclude = append(exclude, p)
	}

	var methods []string
	seenMethod := make(map[string]bool)
	for _, m := range raw.Methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" || seenMethod[m] {
			continue
		}
		seenMethod[m] = true
		methods = append(methods, m)
	}

	success, ferr := normalizeStatusCodes("indicator.successStatusCodes", raw.SuccessStatusCodes)
	if ferr != nil {
		return nil, ferr
	}
	failure, ferr := normalizeStatusCodes("indicator.failureStatusCodes", raw.FailureStatusCodes)
	if ferr != nil {
		return nil, ferr
	}

	return indicator.NewHTTP(indicator.HTTPConfig{
		Route:              route,
		Exclude:            exclude,
		Methods:            methods,
		Treat4xxAsFailures: raw.Treat4xxAsFailures,
		SuccessStatusCodes: success,
		FailureStatusCodes: failure,
	}), nil
}

func normalizeStatusCodes(path string, codes []int) ([]int, *fieldError) {
	seen := make(map[int]bool, len(codes))
	out := make([]int, 0, len(codes))
	for i, c := range codes {
		if c < minStatusCode || c > maxStatusCode {
			return nil, &fieldError{fmt.Sprintf("%s[%d]", path, i), fmt.Sprintf("status code %d outside [%d, %d]", c, minStatusCode, maxStatusCode)}
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
