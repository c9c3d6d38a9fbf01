package domain

import "time"

// RunStatus is the final state of one protocol execution.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunAborted   RunStatus = "aborted"
	RunRejected  RunStatus = "rejected" // refused before any action ran
)

// RunRecord is the archived form of one execution, as handed to a RunStore.
type RunRecord struct {
	ID         string          `json:"id"`
	Protocol   string          `json:"protocol"`
	APIVersion string          `json:"api_version"`
	Status     RunStatus       `json:"status"`
	Log        []CommandRecord `json:"log"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	// Sealed holds the encrypted form of the record when the archive encrypts
	// runs. Only ID, status and timestamps are left readable next to it.
	Sealed string `json:"sealed,omitempty"`
}
