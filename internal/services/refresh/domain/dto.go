// Package domain holds the refresh coordinator DTOs
package domain

// RefreshInput is the trigger body. Both knobs default to true
type RefreshInput struct {
	IncludePEPs  *bool `json:"include_peps" example:"true"`
	SyncPostgres *bool `json:"sync_postgres" example:"true"`
}

// DeltaOutput reports UK row movement between snapshots
type DeltaOutput struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Changed int `json:"changed"`
}

// RescreenOutput reports enqueue outcomes over the candidate set
type RescreenOutput struct {
	Candidates     int `json:"candidates"`
	Queued         int `json:"queued"`
	AlreadyPending int `json:"already_pending"`
	Reused         int `json:"reused"`
	Failed         int `json:"failed"`
}

// RunOutput is the refresh_run block of the response
type RunOutput struct {
	RunID     string         `json:"run_id,omitempty"`
	UKHash    string         `json:"uk_hash"`
	UKChanged bool           `json:"uk_changed"`
	Delta     DeltaOutput    `json:"delta"`
	Rescreen  RescreenOutput `json:"rescreen"`
}

// RefreshOutput is the full trigger response
type RefreshOutput struct {
	Status         string    `json:"status"`
	PostgresSynced bool      `json:"postgres_synced"`
	PostgresRows   int64     `json:"postgres_rows"`
	RefreshRun     RunOutput `json:"refresh_run"`
}
