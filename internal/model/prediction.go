package model

import "time"

// Prediction is one classification outcome. It is never written to the
// relational store; the recent-history cache keeps a short-lived copy.
type Prediction struct {
	UserID    uint      `json:"user_id"`
	Filename  string    `json:"filename"`
	Label     string    `json:"label"`
	Index     int       `json:"index"`
	Score     float32   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}
