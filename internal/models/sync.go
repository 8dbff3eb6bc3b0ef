package models

import "time"

// ConflictSkipped records a remote copy that reconciliation ignored because the local request was already decided.
type ConflictSkipped struct {
	Kind         SubjectKind         `json:"kind"`
	RequestID    string              `json:"requestId"`
	LocalStatus  ChangeRequestStatus `json:"localStatus"`
	RemoteStatus ChangeRequestStatus `json:"remoteStatus"`
}

// SyncKindStatus summarises the sync state of one kind.
type SyncKindStatus struct {
	Kind           SubjectKind `json:"kind"`
	Requests       int         `json:"requests"`
	Pending        int         `json:"pending"`
	Dirty          bool        `json:"dirty"`
	RecordsDirty   bool        `json:"recordsDirty"`
	LastPullAt     *time.Time  `json:"lastPullAt,omitempty"`
	LastPushAt     *time.Time  `json:"lastPushAt,omitempty"`
	LastError      string      `json:"lastError,omitempty"`
	RemoteHash     string      `json:"remoteHash,omitempty"`
	ConflictsTotal int         `json:"conflictsSkipped"`
}

// SyncStatus is the sync loop overview exposed to operators.
type SyncStatus struct {
	ClientID    string           `json:"clientId"`
	Running     bool             `json:"running"`
	Interval    time.Duration    `json:"interval"`
	UnreadCount int              `json:"unreadCount"`
	Kinds       []SyncKindStatus `json:"kinds"`
	Metrics     *EngineMetrics   `json:"metrics,omitempty"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// EngineMetrics is an aggregated view of the Prometheus counters.
type EngineMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	PullsTotal               uint64    `json:"pullsTotal"`
	PullFailures             uint64    `json:"pullFailures"`
	PushesTotal              uint64    `json:"pushesTotal"`
	PushFailures             uint64    `json:"pushFailures"`
	ConflictsSkipped         uint64    `json:"conflictsSkipped"`
	Unread                   int64     `json:"unread"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
