package model

import "time"

// ScoredRecommendation is the pure output of the scoring engine.
type ScoredRecommendation struct {
	Lure     string `json:"lure"`
	Color    string `json:"color"`
	Retrieve string `json:"retrieve"`
	Depth    string `json:"depth"`
}

// Recommendation is a scored result bound to one request instance.
type Recommendation struct {
	ID         string     `json:"id"`
	Conditions Conditions `json:"conditions"`
	CreatedAt  time.Time  `json:"created_at"`
	ScoredRecommendation
}
