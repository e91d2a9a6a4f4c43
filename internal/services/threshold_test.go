package services

import (
	"testing"

	"coordination-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func rainfallObs(rainfall float64) models.WeatherConsensus {
	return models.WeatherConsensus{
		Location:    "Central Bangkok",
		Rainfall:    rainfall,
		Temperature: 30,
		Humidity:    70,
	}
}

func TestEvaluateThresholdOperators(t *testing.T) {
	tests := []struct {
		name     string
		operator models.ThresholdOperator
		value    float64
		actual   float64
		want     bool
	}{
		{"less than breached", models.ThresholdLT, 50, 30, true},
		{"less than not breached", models.ThresholdLT, 50, 50, false},
		{"greater than breached", models.ThresholdGT, 100, 150, true},
		{"greater than not breached", models.ThresholdGT, 100, 100, false},
		{"less or equal at boundary", models.ThresholdLTE, 50, 50, true},
		{"greater or equal at boundary", models.ThresholdGTE, 100, 100, true},
		{"greater or equal below boundary", models.ThresholdGTE, 100, 99.99, false},
		{"equal exact", models.ThresholdEQ, 75, 75, true},
		{"equal within tolerance", models.ThresholdEQ, 75, 75.005, true},
		{"equal outside tolerance", models.ThresholdEQ, 75, 75.02, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := models.IndexThreshold{
				IndexType:      models.IndexRainfall,
				Operator:       tt.operator,
				ThresholdValue: tt.value,
			}
			assert.Equal(t, tt.want, EvaluateThreshold(rule, rainfallObs(tt.actual)))
		})
	}
}

func TestEvaluateThresholdSelectsIndexValue(t *testing.T) {
	obs := models.WeatherConsensus{Rainfall: 10, Temperature: 42, Humidity: 85}

	temperature := models.IndexThreshold{IndexType: models.IndexTemperature, Operator: models.ThresholdGT, ThresholdValue: 40}
	assert.True(t, EvaluateThreshold(temperature, obs))

	humidity := models.IndexThreshold{IndexType: models.IndexHumidity, Operator: models.ThresholdGTE, ThresholdValue: 90}
	assert.False(t, EvaluateThreshold(humidity, obs))
}

func TestEvaluateThresholdIndexTypeCaseInsensitive(t *testing.T) {
	obs := models.WeatherConsensus{Rainfall: 120}

	for _, indexType := range []models.IndexType{"rainfall", "RAINFALL", "Rainfall"} {
		rule := models.IndexThreshold{IndexType: indexType, Operator: models.ThresholdGT, ThresholdValue: 100}
		assert.True(t, EvaluateThreshold(rule, obs), "index type %q should match", indexType)
	}
}

func TestEvaluateThresholdUnknownInputsAreFalse(t *testing.T) {
	obs := models.WeatherConsensus{Rainfall: 120}

	unknownIndex := models.IndexThreshold{IndexType: "windspeed", Operator: models.ThresholdGT, ThresholdValue: 0}
	assert.False(t, EvaluateThreshold(unknownIndex, obs))

	unknownOperator := models.IndexThreshold{IndexType: models.IndexRainfall, Operator: "!=", ThresholdValue: 0}
	assert.False(t, EvaluateThreshold(unknownOperator, obs))
}

func TestNormalizedSubstringMatcher(t *testing.T) {
	matcher := NormalizedSubstringMatcher{}

	tests := []struct {
		name     string
		policy   string
		observed string
		want     bool
	}{
		{"exact", "Bangkok", "Bangkok", true},
		{"case insensitive", "bangkok", "BANGKOK", true},
		{"underscore vs comma", "Central_Bangkok", "Central, Bangkok", true},
		{"hyphen and space", "chiang-mai", "Chiang Mai", true},
		{"substring either direction", "Bangkok", "Central Bangkok", true},
		{"unrelated", "Bangkok", "Phuket", false},
		{"empty policy location", "", "Bangkok", false},
		{"both empty", "", "", false},
		{"separator-only location", "_-", "Bangkok", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matcher.Matches(tt.policy, tt.observed))
		})
	}
}
