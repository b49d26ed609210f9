package pipeline

import (
	"fmt"
	"sync"

	"github.com/archstudio/intake/internal/utils"
)

type Stage string

const (
	StageIdle         Stage = "idle"
	StageSplitting    Stage = "splitting"
	StageUploading    Stage = "uploading"
	StageTranscribing Stage = "transcribing"
	StageAnalyzing    Stage = "analyzing"
	StageDone         Stage = "done"
	StageError        Stage = "error"
	StageCancelled    Stage = "cancelled"
)

// Terminal stages end a run; a new trigger starts a fresh run.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError || s == StageCancelled
}

func (s Stage) Valid() bool {
	_, ok := forward[s]
	return ok
}

// forward lists the non-failure transitions. Error and cancellation are
// handled in canTransition.
var forward = map[Stage][]Stage{
	StageIdle:         {StageSplitting, StageTranscribing},
	StageSplitting:    {StageUploading},
	StageUploading:    {StageTranscribing},
	StageTranscribing: {StageAnalyzing},
	StageAnalyzing:    {StageDone},
	StageDone:         nil,
	StageError:        nil,
	StageCancelled:    nil,
}

func canTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StageCancelled:
		return true
	case StageError:
		return from != StageIdle
	}
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Machine tracks the stage of one run.
type Machine struct {
	mu      sync.Mutex
	stage   Stage
	history []Stage
}

func NewMachine() *Machine {
	return &Machine{stage: StageIdle, history: []Stage{StageIdle}}
}

func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

func (m *Machine) History() []Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Stage(nil), m.history...)
}

func (m *Machine) Transition(to Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !canTransition(m.stage, to) {
		return utils.E(utils.CodeInternal, "Machine.Transition",
			fmt.Sprintf("invalid transition %s -> %s", m.stage, to), nil)
	}
	m.stage = to
	m.history = append(m.history, to)
	return nil
}
