package workflow

// State is a node of the execution state machine.
type State string

const (
	StateStart         State = "start"
	StateClassifyBrand State = "classify_brand"
	StateClassifyTopic State = "classify_topic"
	StateGenerate      State = "generate"
	StateChain         State = "chain"
	StateApprove       State = "approve"
	StateDone          State = "done"
)

// Outcome summarizes how an execution ended.
type Outcome string

const (
	// OutcomeCompleted means a generation branch produced an artifact.
	OutcomeCompleted Outcome = "completed"
	// OutcomeUnmatched means a classification had no mapped branch and the
	// execution ended without generating anything.
	OutcomeUnmatched Outcome = "unmatched"
	// OutcomeFailed means a stage failed and the execution was aborted.
	OutcomeFailed Outcome = "failed"
)
