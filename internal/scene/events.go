package scene

// RepairRequest is the structured notification emitted when a scene needs
// out-of-band repair. SceneIndex is -1 when the failure happened at run time
// and the original authoring index is no longer known.
type RepairRequest struct {
	SceneID    string
	SceneName  string
	SceneIndex int
	Err        string
}

// Notifier is the outbound channel from the engine to its collaborators
// (repair pipeline, UI status). Implementations must be safe for concurrent
// use and must never block for long - notifications are emitted from the
// scheduler goroutine and from render paths.
type Notifier interface {
	// CompilationSucceeded fires after a module for the given fingerprint
	// has been loaded and published.
	CompilationSucceeded(fingerprint string)
	// CompilationFailed fires when a scene's source could not be lowered.
	// The scene is replaced by fallback content; siblings are unaffected.
	CompilationFailed(sceneID string, err error)
	// RepairRequested asks the external repair pipeline to regenerate a
	// scene. Fired for both compile-time and run-time failures.
	RepairRequested(req RepairRequest)
	// SceneRuntimeError fires when a validly compiled scene raises during
	// frame evaluation. Fired once per failure episode, not per frame.
	SceneRuntimeError(sceneID string, err error)
	// SceneRecovered fires when a scene that previously raised at run time
	// evaluates cleanly again.
	SceneRecovered(sceneID string)
}

// NopNotifier discards every notification. Useful as a default and in tests
// that don't assert on events.
type NopNotifier struct{}

func (NopNotifier) CompilationSucceeded(string)        {}
func (NopNotifier) CompilationFailed(string, error)    {}
func (NopNotifier) RepairRequested(RepairRequest)      {}
func (NopNotifier) SceneRuntimeError(string, error)    {}
func (NopNotifier) SceneRecovered(string)              {}

// EventKind identifies a notification captured by ChannelNotifier.
type EventKind string

const (
	EventCompilationSucceeded EventKind = "compilation-succeeded"
	EventCompilationFailed    EventKind = "compilation-failed"
	EventRepairRequested      EventKind = "repair-requested"
	EventSceneRuntimeError    EventKind = "scene-runtime-error"
	EventSceneRecovered       EventKind = "scene-recovered"
)

// Event is one captured notification.
type Event struct {
	Kind        EventKind
	SceneID     string
	Fingerprint string
	Err         string
	Repair      *RepairRequest
}

// ChannelNotifier forwards notifications to a buffered channel. If the
// channel is full the notification is dropped rather than blocking the
// scheduler - consumers that care must drain promptly.
type ChannelNotifier struct {
	C chan Event
}

// NewChannelNotifier creates a ChannelNotifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	return &ChannelNotifier{C: make(chan Event, buffer)}
}

func (n *ChannelNotifier) send(e Event) {
	select {
	case n.C <- e:
	default:
	}
}

func (n *ChannelNotifier) CompilationSucceeded(fp string) {
	n.send(Event{Kind: EventCompilationSucceeded, Fingerprint: fp})
}

func (n *ChannelNotifier) CompilationFailed(sceneID string, err error) {
	n.send(Event{Kind: EventCompilationFailed, SceneID: sceneID, Err: errString(err)})
}

func (n *ChannelNotifier) RepairRequested(req RepairRequest) {
	n.send(Event{Kind: EventRepairRequested, SceneID: req.SceneID, Err: req.Err, Repair: &req})
}

func (n *ChannelNotifier) SceneRuntimeError(sceneID string, err error) {
	n.send(Event{Kind: EventSceneRuntimeError, SceneID: sceneID, Err: errString(err)})
}

func (n *ChannelNotifier) SceneRecovered(sceneID string) {
	n.send(Event{Kind: EventSceneRecovered, SceneID: sceneID})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
