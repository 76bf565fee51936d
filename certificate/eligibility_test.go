package certificate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/typely/certify/storage/model"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0, NormalizeWPM(-3))
	assert.Equal(t, 0, NormalizeWPM(math.NaN()))
	assert.Equal(t, 45, NormalizeWPM(44.5))
	assert.Equal(t, 44, NormalizeWPM(44.49))

	assert.Equal(t, 0.0, NormalizeAccuracy(-1))
	assert.Equal(t, 100.0, NormalizeAccuracy(120))
	assert.Equal(t, 89.99, NormalizeAccuracy(89.991))
	assert.Equal(t, 97.13, NormalizeAccuracy(97.126))
}

func TestEvaluate(t *testing.T) {
	rule := &model.CertificateRule{
		MinWPM:      45,
		MinAccuracy: 90,
		TestType:    model.TestTypeTimed,
		Enabled:     true,
	}
	tests := []struct {
		name     string
		attempt  model.Attempt
		rule     *model.CertificateRule
		eligible bool
		reason   Reason
	}{
		{"exact thresholds", model.Attempt{WPM: 45, Accuracy: 90, TestType: "timed"}, rule, true, ""},
		{"rounded up speed", model.Attempt{WPM: 44.5, Accuracy: 90, TestType: "timed"}, rule, true, ""},
		{"speed below", model.Attempt{WPM: 44.4, Accuracy: 99, TestType: "timed"}, rule, false, ReasonBelowThreshold},
		{"accuracy below", model.Attempt{WPM: 80, Accuracy: 89.99, TestType: "timed"}, rule, false, ReasonBelowThreshold},
		{"hard counts as timed", model.Attempt{WPM: 45, Accuracy: 90, TestType: "hard"}, rule, true, ""},
		{"easy counts as timed", model.Attempt{WPM: 45, Accuracy: 90, TestType: " EASY "}, rule, true, ""},
		{"custom is not timed", model.Attempt{WPM: 100, Accuracy: 100, TestType: "custom"}, rule, false, ReasonTypeMismatch},
		{"unknown tag defaults to timed", model.Attempt{WPM: 45, Accuracy: 90, TestType: "sprint"}, rule, true, ""},
		{"no rule", model.Attempt{WPM: 100, Accuracy: 100, TestType: "timed"}, nil, false, ReasonNoRule},
		{
			"all includes custom", model.Attempt{WPM: 45, Accuracy: 90, TestType: "custom"},
			&model.CertificateRule{MinWPM: 45, MinAccuracy: 90, TestType: model.TestTypeAll}, true, "",
		},
		{
			"exact type match", model.Attempt{WPM: 45, Accuracy: 90, TestType: "medium"},
			&model.CertificateRule{MinWPM: 45, MinAccuracy: 90, TestType: model.TestTypeMedium}, true, "",
		},
		{
			"other difficulty mismatches", model.Attempt{WPM: 45, Accuracy: 90, TestType: "easy"},
			&model.CertificateRule{MinWPM: 45, MinAccuracy: 90, TestType: model.TestTypeHard}, false, ReasonTypeMismatch,
		},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				e := Evaluate(test.attempt, test.rule)
				assert.Equal(t, test.eligible, e.Eligible)
				assert.Equal(t, test.reason, e.Reason)
			},
		)
	}
}

func TestEvaluate_CarriesMeasuredValues(t *testing.T) {
	e := Evaluate(
		model.Attempt{WPM: 38.6, Accuracy: 91.234, TestType: "timed"},
		&model.CertificateRule{MinWPM: 45, MinAccuracy: 90, TestType: model.TestTypeTimed},
	)
	assert.False(t, e.Eligible)
	assert.Equal(t, 39, e.WPM)
	assert.Equal(t, 91.23, e.Accuracy)
	assert.Equal(t, 45, e.MinWPM)
	assert.Equal(t, model.TestTypeTimed, e.TestType)
}
