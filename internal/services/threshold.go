package services

import (
	"log/slog"
	"math"
	"strings"

	"coordination-service/internal/models"
)

// equalityTolerance absorbs floating-point noise in measured values when a
// rule uses the == operator.
const equalityTolerance = 0.01

// EvaluateThreshold reports whether one consensus observation breaches one
// trigger rule. It is pure and total: unknown index types and operators
// log a warning and evaluate to false, never to an error.
func EvaluateThreshold(rule models.IndexThreshold, obs models.WeatherConsensus) bool {
	var actual float64

	switch strings.ToLower(string(rule.IndexType)) {
	case "rainfall":
		actual = obs.Rainfall
	case "temperature":
		actual = obs.Temperature
	case "humidity":
		actual = obs.Humidity
	default:
		slog.Warn("Unknown index type in threshold rule", "index_type", rule.IndexType)
		return false
	}

	switch rule.Operator {
	case models.ThresholdLT:
		return actual < rule.ThresholdValue
	case models.ThresholdGT:
		return actual > rule.ThresholdValue
	case models.ThresholdLTE:
		return actual <= rule.ThresholdValue
	case models.ThresholdGTE:
		return actual >= rule.ThresholdValue
	case models.ThresholdEQ:
		return math.Abs(actual-rule.ThresholdValue) < equalityTolerance
	default:
		slog.Warn("Unknown operator in threshold rule", "operator", rule.Operator)
		return false
	}
}

// LocationMatcher decides whether a policy's farm location is affected by
// an observation's location. Pluggable so the fuzzy default can be swapped
// for exact region-code matching later.
type LocationMatcher interface {
	Matches(policyLocation, observationLocation string) bool
}

// NormalizedSubstringMatcher lower-cases both strings, strips underscores,
// hyphens, commas and whitespace, and matches when either normalized string
// contains the other. Location strings come from independent free-text
// entry by different organizations, so exact comparison is too strict.
type NormalizedSubstringMatcher struct{}

func (NormalizedSubstringMatcher) Matches(policyLocation, observationLocation string) bool {
	p := normalizeLocation(policyLocation)
	o := normalizeLocation(observationLocation)
	if p == "" || o == "" {
		return false
	}
	return strings.Contains(p, o) || strings.Contains(o, p)
}

func normalizeLocation(location string) string {
	replacer := strings.NewReplacer("_", "", "-", "", " ", "", "\t", "", ",", "")
	return replacer.Replace(strings.ToLower(location))
}
