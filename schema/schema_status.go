package schema

import "time"

// CacheStatus represents the status of the dual-tier cache.
type CacheStatus struct {
	Type          string `json:"type"` // redis or memory
	Connected     bool   `json:"connected"`
	State         string `json:"state"`
	KeyCount      int64  `json:"keyCount"`
	MemoryUsed    string `json:"memoryUsed,omitempty"`
	EstimatedSize int64  `json:"estimatedSize"` // bytes held by the local tier
	LocalKeys     int    `json:"localKeys"`
}

// StoreStatus represents the status of the durable store.
type StoreStatus struct {
	Backend          string           `json:"backend"`
	Connected        bool             `json:"connected"`
	SchemaVersion    uint             `json:"schema_version"`
	TotalRepos       int64            `json:"total_repositories"`
	TotalAnalyses    int64            `json:"total_analyses"`
	LastAnalysisTime time.Time        `json:"last_analysis_time"`
	TableSizes       map[string]int64 `json:"table_sizes"`
}
