package entities

import "fmt"

// PhaseKind enumerates the orchestrator's top-level states.
type PhaseKind string

const (
	PhaseInput      PhaseKind = "input"
	PhaseRecording  PhaseKind = "recording"
	PhaseImporting  PhaseKind = "importing"
	PhaseProcessing PhaseKind = "processing"
	PhaseViewing    PhaseKind = "viewing"
	PhaseError      PhaseKind = "error"
)

// FlowPhase is the single observable state value exposed to the presentation
// layer. Step is set only while Kind is PhaseProcessing; Err only while Kind
// is PhaseError.
type FlowPhase struct {
	Kind PhaseKind
	Step ProcessingStep
	Err  error
}

// InputPhase is the initial phase.
func InputPhase() FlowPhase { return FlowPhase{Kind: PhaseInput} }

// ProcessingPhase wraps a processing step into a phase value.
func ProcessingPhase(step ProcessingStep) FlowPhase {
	return FlowPhase{Kind: PhaseProcessing, Step: step}
}

// ErrorPhase wraps a flow error into a phase value.
func ErrorPhase(err error) FlowPhase { return FlowPhase{Kind: PhaseError, Err: err} }

func (p FlowPhase) String() string {
	switch p.Kind {
	case PhaseProcessing:
		return fmt.Sprintf("processing(%s)", p.Step)
	case PhaseError:
		return fmt.Sprintf("error(%v)", p.Err)
	default:
		return string(p.Kind)
	}
}

// StepKind enumerates the processing sub-phases.
type StepKind string

const (
	StepUploading    StepKind = "uploading"
	StepTranscribing StepKind = "transcribing"
	StepModerating   StepKind = "moderating"
	StepAnalyzing    StepKind = "analyzing"
	StepSaving       StepKind = "saving"
)

// ProcessingStep is one sub-phase of the overall processing sequence.
// Fraction is the progress within the step (0..1) and is meaningful for
// Uploading and Transcribing; ChunkIndex/ChunkTotal only for Transcribing.
type ProcessingStep struct {
	Kind       StepKind
	Fraction   float64
	ChunkIndex int
	ChunkTotal int
}

func (s ProcessingStep) String() string {
	switch s.Kind {
	case StepUploading:
		return fmt.Sprintf("uploading %.0f%%", s.Fraction*100)
	case StepTranscribing:
		return fmt.Sprintf("transcribing chunk %d/%d", s.ChunkIndex, s.ChunkTotal)
	default:
		return string(s.Kind)
	}
}

// Sub-range boundaries of the composite 0..1 progress scalar. These must not
// drift: the mobile client renders the same splits.
const (
	uploadBand     = 0.20
	transcribeBand = 0.70
	moderateBand   = 0.75
	analyzeBand    = 0.95
)

// StepForFraction maps a composite progress fraction onto the processing
// step shown to the user. chunkTotal sizes the per-chunk transcription
// counter; values below 1 are treated as a single chunk.
func StepForFraction(fraction float64, chunkTotal int) ProcessingStep {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	if chunkTotal < 1 {
		chunkTotal = 1
	}

	switch {
	case fraction < uploadBand:
		return ProcessingStep{Kind: StepUploading, Fraction: fraction / uploadBand}
	case fraction < transcribeBand:
		tf := (fraction - uploadBand) / (transcribeBand - uploadBand)
		idx := int(tf*float64(chunkTotal)) + 1
		if idx > chunkTotal {
			idx = chunkTotal
		}
		return ProcessingStep{Kind: StepTranscribing, Fraction: tf, ChunkIndex: idx, ChunkTotal: chunkTotal}
	case fraction < moderateBand:
		return ProcessingStep{Kind: StepModerating, Fraction: 1}
	case fraction < analyzeBand:
		return ProcessingStep{Kind: StepAnalyzing, Fraction: 1}
	default:
		return ProcessingStep{Kind: StepSaving, Fraction: 1}
	}
}
