package model

// Phase is the discriminator of GenerationState.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePending Phase = "pending"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// ErrorKind classifies why a generation cycle did not produce a concept.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindTransport  ErrorKind = "transport"
	ErrorKindSchema     ErrorKind = "schema"
)

// GenerationState is a tagged union over Phase.
// Concept is set only in PhaseReady, Error only in PhaseFailed.
type GenerationState struct {
	Phase   Phase
	Prompt  string
	Concept *MovieConcept
	Error   ErrorKind
}

func IdleState(prompt string) GenerationState {
	return GenerationState{Phase: PhaseIdle, Prompt: prompt}
}

func PendingState(prompt string) GenerationState {
	return GenerationState{Phase: PhasePending, Prompt: prompt}
}

func ReadyState(prompt string, concept MovieConcept) GenerationState {
	return GenerationState{Phase: PhaseReady, Prompt: prompt, Concept: &concept}
}

func FailedState(prompt string, kind ErrorKind) GenerationState {
	return GenerationState{Phase: PhaseFailed, Prompt: prompt, Error: kind}
}

// Editable reports whether the prompt input is shown and accepts edits.
// A failed cycle renders exactly like idle.
func (s GenerationState) Editable() bool {
	return s.Phase == PhaseIdle || s.Phase == PhaseFailed
}

// View names which presentation the rendering layer should show.
type View string

const (
	ViewPromptForm View = "prompt"
	ViewConcept    View = "concept"
)

// StateView is the rendering projection of a GenerationState.
type StateView struct {
	SessionID string        `json:"sessionId,omitempty"`
	Phase     Phase         `json:"phase"`
	View      View          `json:"view"`
	Editable  bool          `json:"editable"`
	Loading   bool          `json:"loading"`
	Prompt    string        `json:"prompt"`
	Concept   *MovieConcept `json:"concept,omitempty"`
	LastError ErrorKind     `json:"lastError,omitempty"`
}

// Render projects the state for the presentation layer.
func (s GenerationState) Render() StateView {
	v := StateView{
		Phase:     s.Phase,
		View:      ViewPromptForm,
		Editable:  s.Editable(),
		Loading:   s.Phase == PhasePending,
		Prompt:    s.Prompt,
		LastError: s.Error,
	}
	if s.Phase == PhaseReady && s.Concept != nil {
		c := *s.Concept
		v.View = ViewConcept
		v.Concept = &c
	}
	return v
}
