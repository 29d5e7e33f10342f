package recovery

import "context"

// Strategy decides what happens when a recoverable error occurs while
// loading a template or rendering an overlay.
type Strategy interface {
	OnError(ctx context.Context, err error, location Location) Action
}

// Location identifies where an error happened. ByteOffset and ObjectNum are
// set by the PDF layers; Field names the form identifier for overlay errors.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
	Field      string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	case ActionWarn:
		return "warn"
	}
	return "unknown"
}
