// Package indicator decides which HTTP observations count toward an SLO and
// whether they are successes or failures.
package indicator

import (
	"sort"
)

// TypeHTTP is the only indicator variant.
const TypeHTTP = "http"

// HTTP is a compiled HTTP request indicator.
//
// An HTTP indicator is immutable once built; Matches and IsFailure are safe
// for concurrent use.
type HTTP struct {
	Route              Pattern
	Exclude            []Pattern
	Treat4xxAsFailures bool

	methods      map[string]struct{}
	successCodes map[int]struct{}
	failureCodes map[int]struct{}
}

// HTTPConfig holds already-validated indicator fields.
type HTTPConfig struct {
	Route              Pattern
	Exclude            []Pattern
	Methods            []string // upper-case, de-duplicated
	Treat4xxAsFailures bool
	SuccessStatusCodes []int
	FailureStatusCodes []int
}

// NewHTTP builds an HTTP indicator from validated configuration.
func NewHTTP(cfg HTTPConfig) *HTTP {
	h := &HTTP{
		Route:              cfg.Route,
		Exclude:            append([]Pattern(nil), cfg.Exclude...),
		Treat4xxAsFailures: cfg.Treat4xxAsFailures,
		methods:            make(map[string]struct{}, len(cfg.Methods)),
		successCodes:       make(map[int]struct{}, len(cfg.SuccessStatusCodes)),
		failureCodes:       make(map[int]struct{}, len(cfg.FailureStatusCodes)),
	}
	for _, m := range cfg.Methods {
		h.methods[m] = struct{}{}
	}
	for _, c := range cfg.SuccessStatusCodes {
		h.successCodes[c] = struct{}{}
	}
	for _, c := range cfg.FailureStatusCodes {
		h.failureCodes[c] = struct{}{}
	}
	return h
}

// Matches reports whether a request for route with the given upper-case
// method counts toward the indicator.
func (h *HTTP) Matches(route, method string) bool {
	if !h.Route.MatchString(route) {
		return false
	}
	for _, ex := range h.Exclude {
		if ex.MatchString(route) {
			return false
		}
	}
	if len(h.methods) == 0 {
		return true
	}
	_, ok := h.methods[method]
	return ok
}

// IsFailure classifies a status code. First hit wins:
// success list, failure list, 4xx rule, 5xx.
func (h *HTTP) IsFailure(statusCode int) bool {
	if len(h.successCodes) > 0 {
		if _, ok := h.successCodes[statusCode]; ok {
			return false
		}
	}
	if len(h.failureCodes) > 0 {
		if _, ok := h.failureCodes[statusCode]; ok {
			return true
		}
	}
	if h.Treat4xxAsFailures && statusCode >= 400 && statusCode < 499 {
		return true
	}
	return statusCode >= 500
}

// Methods returns the method whitelist in sorted order.
func (h *HTTP) Methods() []string {
	return sortedKeys(h.methods)
}

// SuccessStatusCodes returns the explicit success codes in ascending order.
func (h *HTTP) SuccessStatusCodes() []int {
	return sortedCodes(h.successCodes)
}

// FailureStatusCodes returns the explicit failure codes in ascending order.
func (h *HTTP) FailureStatusCodes() []int {
	return sortedCodes(h.failureCodes)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedCodes(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
