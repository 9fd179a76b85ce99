package service

import "net/http"

type OutcomeKind int

const (
	OutcomeApplied OutcomeKind = iota
	OutcomeSkipped
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Outcome is what processing an event did: applied, skipped with a reason, or failed.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

func Applied() Outcome {
	return Outcome{Kind: OutcomeApplied}
}

func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// HTTPStatus is the response code for the provider: failures ask for a retry.
func (o Outcome) HTTPStatus() int {
	if o.Kind == OutcomeFailed {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
