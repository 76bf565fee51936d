package model

import (
	"context"
	"time"
)

// DefaultStudentName is used when no profile is stored for a user
const DefaultStudentName = "Typely Student"

// Attempt is a completed and scored typing test. Attempts are written
// upstream; this service only reads them.
type Attempt struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `gorm:"column:user_id;index;size:64" json:"user_id"`
	WPM       float64   `gorm:"column:wpm" json:"wpm"`
	Accuracy  float64   `gorm:"column:accuracy" json:"accuracy"`
	TestType  string    `gorm:"column:test_type;size:32" json:"test_type"`
}

// TableName implements the gorm tabler interface
func (Attempt) TableName() string {
	return "test_attempts"
}

// Profile holds the public display name of a user
type Profile struct {
	UserID      string `gorm:"primaryKey;column:user_id;size:64" json:"user_id"`
	DisplayName string `gorm:"column:display_name;size:255" json:"display_name"`
}

// TableName implements the gorm tabler interface
func (Profile) TableName() string {
	return "profiles"
}

// AttemptsStore gives read access to attempts and profiles
type AttemptsStore interface {
	// Get returns an attempt; NotFoundError if it does not exist.
	Get(ctx context.Context, attemptID string) (*Attempt, error)
	// StudentName returns the display name of a user or DefaultStudentName.
	StudentName(ctx context.Context, userID string) (string, error)
}
