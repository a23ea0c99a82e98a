package workflow

import (
	"time"

	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// Input is the entry contract of a workflow run.
type Input struct {
	InputAsText string `json:"input_as_text"`
}

// PathEntry records one routing decision.
type PathEntry struct {
	Classifier string `json:"classifier"`
	Value      string `json:"value"`
	Matched    bool   `json:"matched"`
}

// Execution is the record of one workflow run. It lives for a single
// request and is never shared.
type Execution struct {
	ID         string         `json:"id"`
	TraceID    string         `json:"trace_id,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	States     []State        `json:"states"`
	Path       []PathEntry    `json:"path"`
	Results    []stage.Result `json:"results"`
	Gate       *GateDecision  `json:"gate,omitempty"`
	Output     *stage.Output  `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`

	transcript *transcript.Transcript
}

// Transcript returns the execution's transcript.
func (e *Execution) Transcript() *transcript.Transcript { return e.transcript }

// Generations returns the results of generation stages in run order.
func (e *Execution) Generations() []stage.Result {
	var out []stage.Result
	for _, r := range e.Results {
		if r.Kind == stage.KindGeneration {
			out = append(out, r)
		}
	}
	return out
}

// Brand returns the value chosen by the first classifier, if any.
func (e *Execution) Brand() string {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[0].Value
}

// Duration returns how long the execution ran.
func (e *Execution) Duration() time.Duration {
	if e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

func (e *Execution) enter(s State) {
	e.States = append(e.States, s)
}

func (e *Execution) pathStrings() []string {
	out := make([]string, len(e.Path))
	for i, p := range e.Path {
		out[i] = p.Classifier + "=" + p.Value
	}
	return out
}
