package harness

// Event type constants for the trace.
const (
	EventSceneLowered      = "scene-lowered"
	EventSceneFallback     = "scene-fallback"
	EventCompilationFailed = "compilation-failed"
	EventRepairRequested   = "repair-requested"
	EventRevisionSkipped   = "revision-skipped"
	EventModuleAssembled   = "module-assembled"
	EventModuleLoaded      = "module-loaded"
	EventFrameRendered     = "frame-rendered"
	EventRuntimeError      = "scene-runtime-error"
	EventSceneRecovered    = "scene-recovered"
)

// TraceEvent is one entry in a scenario's execution trace. Failure events
// carry the scene but not the evaluator's message text, so traces stay
// byte-identical across CUE releases.
type TraceEvent struct {
	Type        string          `json:"type"`
	Scene       string          `json:"scene,omitempty"`
	Entry       string          `json:"entry,omitempty"`
	Mode        string          `json:"mode,omitempty"`
	TotalFrames int             `json:"total_frames,omitempty"`
	Boundaries  []BoundaryTrace `json:"boundaries,omitempty"`
	Frame       *int            `json:"frame,omitempty"`
	Kinds       []string        `json:"kinds,omitempty"`
	Fallback    bool            `json:"fallback,omitempty"`
	Gain        *float64        `json:"gain,omitempty"`
}

// BoundaryTrace is one timeline segment in a module-assembled event.
type BoundaryTrace struct {
	Scene    string `json:"scene"`
	Entry    string `json:"entry"`
	From     int    `json:"from"`
	Duration int    `json:"duration"`
	Valid    bool   `json:"valid"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if all assertions match.
	Pass bool `json:"pass"`

	// Trace contains every pipeline event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addEvent(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}

// CountEvents returns how many trace events have the given type.
func (r *Result) CountEvents(eventType string) int {
	count := 0
	for _, e := range r.Trace {
		if e.Type == eventType {
			count++
		}
	}
	return count
}
