// Package pipeline sequences the analysis pipeline: parameter extraction,
// log acquisition, trace discovery, bundle compilation, per-trace analysis,
// and relevance scoring. Progress is pushed to the caller as events; the
// transport adapter forwards them as server-sent events.
package pipeline

// Step names the pipeline stages as they appear on the event stream.
type Step string

const (
	StepExtractedParameters Step = "Extracted Parameters"
	StepFoundRelevantFiles  Step = "Found relevant files"
	StepFoundTraceIDs       Step = "Found trace id(s)"
	StepCompiledTraces      Step = "Compiled Request Traces"
	StepCompiledSummary     Step = "Compiled Summary"
	StepVerification        Step = "Verification Results"
	StepWarning             Step = "warning"
	StepDone                Step = "done"
	StepError               Step = "error"
)

// ErrorKind classifies pipeline failures for event payloads and logs.
type ErrorKind string

const (
	ErrorKindInput       ErrorKind = "input"
	ErrorKindAcquisition ErrorKind = "acquisition"
	ErrorKindFraming     ErrorKind = "framing"
	ErrorKindLLM         ErrorKind = "llm"
	ErrorKindCache       ErrorKind = "cache"
	ErrorKindIO          ErrorKind = "io"
)

// Event is one progress notification. Payload is either a JSON-marshalable
// object or a plain string.
type Event struct {
	Step    Step `json:"step"`
	Payload any  `json:"payload"`
}

// ErrorPayload is the data field of an error or warning event.
type ErrorPayload struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// DonePayload is the terminal event's data field. Outcome is set for early
// "nothing to do" terminations.
type DonePayload struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
}

const (
	StatusComplete = "complete"
	StatusError    = "error"
)
