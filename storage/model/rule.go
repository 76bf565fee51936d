package model

import (
	"context"
	"strings"
	"time"
)

// TestType is the kind of typing test an attempt or rule refers to
type TestType string

// Constants for TestType
const (
	TestTypeAll    TestType = "all"
	TestTypeTimed  TestType = "timed"
	TestTypeEasy   TestType = "easy"
	TestTypeMedium TestType = "medium"
	TestTypeHard   TestType = "hard"
	TestTypeCustom TestType = "custom"
)

// RuleTestTypes lists all test types a rule may be scoped to
var RuleTestTypes = []string{
	string(TestTypeAll),
	string(TestTypeTimed),
	string(TestTypeEasy),
	string(TestTypeMedium),
	string(TestTypeHard),
	string(TestTypeCustom),
}

// NormalizeAttemptTestType maps an attempt's test type tag onto the closed
// set of attempt types; unknown values become TestTypeTimed.
func NormalizeAttemptTestType(tag string) TestType {
	switch t := TestType(strings.ToLower(strings.TrimSpace(tag))); t {
	case TestTypeTimed, TestTypeEasy, TestTypeMedium, TestTypeHard, TestTypeCustom:
		return t
	default:
		return TestTypeTimed
	}
}

// Label returns a human-readable label for the test type
func (t TestType) Label() string {
	switch t {
	case TestTypeEasy:
		return "Easy Typing Test"
	case TestTypeMedium:
		return "Medium Typing Test"
	case TestTypeHard:
		return "Hard Typing Test"
	case TestTypeCustom:
		return "Custom Typing Test"
	default:
		return "Timed Typing Test"
	}
}

// CertificateRule holds the thresholds an attempt has to clear
type CertificateRule struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`
	MinWPM      int       `gorm:"column:min_wpm" json:"min_wpm"`
	MinAccuracy float64   `gorm:"column:min_accuracy;type:decimal(5,2)" json:"min_accuracy"`
	TestType    TestType  `gorm:"column:test_type;size:16;default:timed" json:"test_type"`
	Enabled     bool      `gorm:"column:enabled;index" json:"enabled"`
}

// TableName implements the gorm tabler interface
func (CertificateRule) TableName() string {
	return "certificate_rules"
}

// AddCertificateRule is the request payload to create/update a CertificateRule
type AddCertificateRule struct {
	MinWPM      int     `json:"min_wpm" validate:"gte=0"`
	MinAccuracy float64 `json:"min_accuracy" validate:"gte=0,lte=100"`
	TestType    string  `json:"test_type" validate:"required"`
	Enabled     *bool   `json:"enabled"`
}

// RulesStore abstracts CRUD for certificate rules.
type RulesStore interface {
	// Active returns the most recently updated enabled rule or (nil, nil).
	Active(ctx context.Context) (*CertificateRule, error)
	List() ([]CertificateRule, error)
	Create(req AddCertificateRule) (*CertificateRule, error)
	Get(ident string) (*CertificateRule, error)
	Update(ident string, req AddCertificateRule) (*CertificateRule, error)
	Delete(ident string) error
}
