package models

import "time"

// Health is the tri-state summary of integration correctness.
type Health string

const (
	HealthGreen  Health = "green"
	HealthYellow Health = "yellow"
	HealthRed    Health = "red"
)

// ConnectionStatus is the cached credential state for an org's external
// ledger connection.
type ConnectionStatus struct {
	Connected    bool  `json:"connected"`
	ExpiresInSec int64 `json:"expiresInSec,omitempty"`
}

// DiagnosticsSnapshot is the current per-org health row. Exactly one
// live row per organization, overwritten on each persisted evaluation.
type DiagnosticsSnapshot struct {
	OrgID     string `json:"orgId"`
	Provider  string `json:"provider"`
	Overall   Health `json:"overall"`
	Connected bool   `json:"connected"`
	// ExpiresInSec is the remaining credential lifetime reported by the
	// provider; zero when disconnected or not reported.
	ExpiresInSec      int64      `json:"expiresInSec,omitempty"`
	MappingsComplete  bool       `json:"mappingsComplete"`
	WarningsCount     int        `json:"warningsCount"`
	Missing           []Bucket   `json:"missing,omitempty"`
	Warnings          []string   `json:"warnings,omitempty"`
	LastTestForwardID string     `json:"lastTestForwardId,omitempty"`
	LastTestReverseID string     `json:"lastTestReverseId,omitempty"`
	LastVerifiedAt    *time.Time `json:"lastVerifiedAt,omitempty"`
	EvaluatedAt       time.Time  `json:"evaluatedAt"`
}

// AlertKind classifies a detected health transition.
type AlertKind string

const (
	AlertKindDegraded  AlertKind = "degraded"
	AlertKindRecovered AlertKind = "recovered"
)

// AlertEvent is one append-only audit row per genuine health
// transition. Never mutated or deleted.
type AlertEvent struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"orgId"`
	PrevStatus Health    `json:"prevStatus"`
	NextStatus Health    `json:"nextStatus"`
	Kind       AlertKind `json:"kind"`
	Recipients []string  `json:"recipients"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"createdAt"`
}
