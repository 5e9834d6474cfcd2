package generation

import "strings"

// Phase is one step of a generation. Phases are totally ordered; Ready and
// Failed are terminal.
type Phase int

const (
	PhaseReceived Phase = iota + 1
	PhaseFetchingCredentials
	PhaseAwaitingImage
	PhaseReady
	PhaseFailed
)

const (
	LabelReceived            = "Request received..."
	LabelFetchingCredentials = "Generating AWS creds..."
	LabelAwaitingImage       = "Waiting for image..."
	LabelReady               = "Image ready!"

	// FallbackFailure stands in for an error that carries no message.
	FallbackFailure = "An error occurred."
)

func (p Phase) String() string {
	switch p {
	case PhaseReceived:
		return "received"
	case PhaseFetchingCredentials:
		return "fetching_credentials"
	case PhaseAwaitingImage:
		return "awaiting_image"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Status is a tagged variant: Image is set only for PhaseReady, Message only
// for PhaseFailed.
type Status struct {
	Phase   Phase
	Image   string
	Message string
}

func Received() Status            { return Status{Phase: PhaseReceived} }
func FetchingCredentials() Status { return Status{Phase: PhaseFetchingCredentials} }
func AwaitingImage() Status       { return Status{Phase: PhaseAwaitingImage} }
func Ready(image string) Status   { return Status{Phase: PhaseReady, Image: image} }

// Failed never carries an empty message so the stream always has a line to show.
func Failed(msg string) Status {
	if strings.TrimSpace(msg) == "" {
		msg = FallbackFailure
	}
	return Status{Phase: PhaseFailed, Message: msg}
}

func (s Status) Terminal() bool {
	return s.Phase == PhaseReady || s.Phase == PhaseFailed
}

// Label is the user-facing status line sent over the progress stream.
func (s Status) Label() string {
	switch s.Phase {
	case PhaseReceived:
		return LabelReceived
	case PhaseFetchingCredentials:
		return LabelFetchingCredentials
	case PhaseAwaitingImage:
		return LabelAwaitingImage
	case PhaseReady:
		return LabelReady
	}
	return s.Message
}

// Parse rebuilds a Status from its wire form. Any label other than the four
// phase labels is a failure message.
func Parse(label, image string) Status {
	switch label {
	case LabelReceived:
		return Received()
	case LabelFetchingCredentials:
		return FetchingCredentials()
	case LabelAwaitingImage:
		return AwaitingImage()
	case LabelReady:
		if image != "" {
			return Ready(image)
		}
	}
	return Failed(label)
}

// Sink receives statuses in the order they are produced.
type Sink func(Status)
