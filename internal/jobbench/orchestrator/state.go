package orchestrator

import "fmt"

// State is how far a benchmark run has progressed.
type State int

const (
	StateInit State = iota
	StateSchemaReady
	StateJobsGenerated
	StateWorkersRunning
	StateWorkersDrained
	StateVerified
	StateDone
	StateAborted
)

var stateNames = map[State]string{
	StateInit:           "INIT",
	StateSchemaReady:    "SCHEMA_READY",
	StateJobsGenerated:  "JOBS_GENERATED",
	StateWorkersRunning: "WORKERS_RUNNING",
	StateWorkersDrained: "WORKERS_DRAINED",
	StateVerified:       "VERIFIED",
	StateDone:           "DONE",
	StateAborted:        "ABORTED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StageError reports the stage that stopped a run.
type StageError struct {
	Stage string
	// The state the failed stage would have reached.
	State State
	// The state reached by the last stage that succeeded.
	LastCompleted State
	LogPath       string
	Err           error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q aborted the run at %s (last completed %s, log %s): %v",
		e.Stage, e.State, e.LastCompleted, e.LogPath, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
