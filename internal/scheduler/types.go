package scheduler

import (
	"time"
)

// PollResult captures the outcome of one poll of a link.
type PollResult struct {
	Link        string
	StartTime   time.Time
	EndTime     time.Time
	Spooled     int // files written to the outbound
	Success     bool
	TimedOut    bool
	ExitCode    int // mailer exit code, 0 when no mailer ran
	Output      string
	ErrorOutput string
	Error       error
}

// PollHistory tracks historical poll data for a link.
type PollHistory struct {
	Link         string    `json:"link"`
	LastRun      time.Time `json:"last_run"`
	LastStatus   string    `json:"last_status"` // "success", "failure", "timeout"
	LastDuration int64     `json:"last_duration_ms"`
	LastSpooled  int       `json:"last_spooled"`
	RunCount     int       `json:"run_count"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
}
