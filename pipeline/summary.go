package pipeline

import "time"

// Summary is the outcome of one run. When Complete is false the run was
// aborted and the counts cover only what was collected before the abort.
type Summary struct {
	RunID string `json:"run_id" yaml:"run_id"`
	// Total, Passed and Failed count records, not items.
	Total  int `json:"total" yaml:"total"`
	Passed int `json:"passed" yaml:"passed"`
	Failed int `json:"failed" yaml:"failed"`
	// Items is the number of work items collected.
	Items int `json:"items" yaml:"items"`
	// Dropped is the number of invalid work items the feeder discarded.
	Dropped int `json:"dropped" yaml:"dropped"`
	// PassSink and FailSink identify the sinks that were opened.
	PassSink  string        `json:"pass_sink,omitempty" yaml:"pass_sink,omitempty"`
	FailSink  string        `json:"fail_sink,omitempty" yaml:"fail_sink,omitempty"`
	Log       []LogEntries  `json:"log,omitempty" yaml:"log,omitempty"`
	Complete  bool          `json:"complete" yaml:"complete"`
	Warnings  []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}
