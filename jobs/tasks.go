// Package jobs hosts the background worker and its task definitions.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPnLWarmup refreshes the cached P&L reports for standard windows.
	TaskPnLWarmup = "pnl:warmup"
)

// PnLWarmupPayload parameterises a warmup run. An empty branch list means
// the whole fleet plus every active branch.
type PnLWarmupPayload struct {
	Branches []string `json:"branches,omitempty"`
}

// NewPnLWarmupTask constructs an Asynq task.
func NewPnLWarmupTask(payload PnLWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPnLWarmup, data), nil
}
