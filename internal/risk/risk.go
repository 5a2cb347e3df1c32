// Package risk scores churn risk from monthly charge and tenure using a static
// linear heuristic.
package risk

import (
	"fmt"
	"strconv"
	"strings"
)

// Input bounds and defaults for the two controls.
const (
	MinMonthlyCharge     = 0
	MaxMonthlyCharge     = 200
	DefaultMonthlyCharge = 70

	MinTenureMonths     = 0
	MaxTenureMonths     = 72
	DefaultTenureMonths = 12
)

// HighRiskThreshold is the score above which a customer is high risk. A score
// equal to the threshold is stable.
const HighRiskThreshold = 1.0

// Level is the risk bucket.
type Level int

const (
	// Stable means the score did not exceed the threshold.
	Stable Level = iota
	// HighRisk means the score exceeded the threshold.
	HighRisk
)

// String returns the display label for a level.
func (l Level) String() string {
	switch l {
	case HighRisk:
		return "High Churn Risk"
	default:
		return "Customer Stable"
	}
}

// Input is a validated pair of control values.
type Input struct {
	MonthlyCharge int `json:"monthly_charge"`
	TenureMonths  int `json:"tenure_months"`
}

// DefaultInput returns the control defaults.
func DefaultInput() Input {
	return Input{MonthlyCharge: DefaultMonthlyCharge, TenureMonths: DefaultTenureMonths}
}

// Prediction is a scored input.
type Prediction struct {
	Input Input   `json:"input"`
	Score float64 `json:"score"`
	Level Level   `json:"level"`
	Label string  `json:"label"`
}

// Score computes monthly/200 + (1 - tenure/72). It does not validate bounds.
func Score(monthly, tenure int) float64 {
	return float64(monthly)/MaxMonthlyCharge + (1 - float64(tenure)/MaxTenureMonths)
}

// Classify maps a score to a level.
func Classify(score float64) Level {
	if score > HighRiskThreshold {
		return HighRisk
	}
	return Stable
}

// Predict scores and classifies an input.
func Predict(in Input) Prediction {
	score := Score(in.MonthlyCharge, in.TenureMonths)
	level := Classify(score)
	return Prediction{Input: in, Score: score, Level: level, Label: level.String()}
}

// ParseInput validates raw control values. Blank values take the defaults.
func ParseInput(monthly, tenure string) (Input, error) {
	m, err := parseBounded("monthly charge", monthly, DefaultMonthlyCharge, MinMonthlyCharge, MaxMonthlyCharge)
	if err != nil {
		return Input{}, err
	}
	t, err := parseBounded("tenure", tenure, DefaultTenureMonths, MinTenureMonths, MaxTenureMonths)
	if err != nil {
		return Input{}, err
	}
	return Input{MonthlyCharge: m, TenureMonths: t}, nil
}

func parseBounded(name, raw string, def, lo, hi int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number between %d and %d", name, lo, hi)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, v)
	}
	return v, nil
}
