package certificate

import (
	"math"
	"strings"

	"github.com/typely/certify/storage/model"
)

// Reason explains why an attempt is not eligible
type Reason string

// Constants for Reason
const (
	ReasonNoRule         Reason = "no_rule"
	ReasonTypeMismatch   Reason = "type_mismatch"
	ReasonBelowThreshold Reason = "below_threshold"
)

// Eligibility is the outcome of evaluating an attempt against the active rule
type Eligibility struct {
	Eligible    bool           `json:"eligible"`
	Reason      Reason         `json:"reason,omitempty"`
	WPM         int            `json:"wpm"`
	Accuracy    float64        `json:"accuracy"`
	TestType    model.TestType `json:"test_type"`
	MinWPM      int            `json:"min_wpm,omitempty"`
	MinAccuracy float64        `json:"min_accuracy,omitempty"`
	RuleType    model.TestType `json:"rule_test_type,omitempty"`
}

// NormalizeWPM rounds a measured speed to a non-negative integer
func NormalizeWPM(wpm float64) int {
	if math.IsNaN(wpm) || wpm <= 0 {
		return 0
	}
	if wpm >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Round(wpm))
}

// NormalizeAccuracy clamps accuracy to [0,100] and rounds it to two decimals
func NormalizeAccuracy(accuracy float64) float64 {
	switch {
	case math.IsNaN(accuracy), accuracy <= 0:
		return 0
	case accuracy >= 100:
		return 100
	}
	return math.Round(accuracy*100) / 100
}

// normalizeRuleTestType maps a stored rule type onto the rule enumeration.
// Unknown values become timed.
func normalizeRuleTestType(t model.TestType) model.TestType {
	v := model.TestType(strings.ToLower(strings.TrimSpace(string(t))))
	if v == model.TestTypeAll {
		return v
	}
	return model.NormalizeAttemptTestType(string(v))
}

// RuleMatches reports whether a rule of type ruleType applies to an attempt
// of type attemptType. A timed rule covers all timed variants but not custom
// tests; an all rule covers everything, custom included.
func RuleMatches(ruleType, attemptType model.TestType) bool {
	ruleType = normalizeRuleTestType(ruleType)
	switch ruleType {
	case model.TestTypeAll:
		return true
	case attemptType:
		return true
	case model.TestTypeTimed:
		switch attemptType {
		case model.TestTypeTimed, model.TestTypeEasy, model.TestTypeMedium, model.TestTypeHard:
			return true
		}
	}
	return false
}

// Evaluate decides whether attempt qualifies for a certificate under rule.
// A nil rule means no rule is configured.
func Evaluate(attempt model.Attempt, rule *model.CertificateRule) Eligibility {
	e := Eligibility{
		WPM:      NormalizeWPM(attempt.WPM),
		Accuracy: NormalizeAccuracy(attempt.Accuracy),
		TestType: model.NormalizeAttemptTestType(attempt.TestType),
	}
	if rule == nil {
		e.Reason = ReasonNoRule
		return e
	}
	e.MinWPM = rule.MinWPM
	e.MinAccuracy = rule.MinAccuracy
	e.RuleType = normalizeRuleTestType(rule.TestType)

	if !RuleMatches(rule.TestType, e.TestType) {
		e.Reason = ReasonTypeMismatch
		return e
	}
	if e.WPM < rule.MinWPM || e.Accuracy < rule.MinAccuracy {
		e.Reason = ReasonBelowThreshold
		return e
	}
	e.Eligible = true
	return e
}
