// Package dialog holds the operator interaction surface. Steps never read
// stdin themselves; they go through a Gate so that runs can be scripted in
// tests and checkpoint answers stay uniform across the whole program.
package dialog

import "errors"

// ErrUserAborted is returned when the operator answers a checkpoint with
// abort. The runner maps it to a failed run without a retry hint.
var ErrUserAborted = errors.New("aborted by operator")

// Answer is the outcome of a checkpoint question.
type Answer int

const (
	// AnswerOK accepts the step's outcome and moves on.
	AnswerOK Answer = iota
	// AnswerAbort stops the run; nothing from the current step is kept.
	AnswerAbort
	// AnswerRepeat discards the step's outcome and runs it again.
	AnswerRepeat
)

func (a Answer) String() string {
	switch a {
	case AnswerOK:
		return "ok"
	case AnswerAbort:
		return "abort"
	case AnswerRepeat:
		return "repeat"
	}
	return "unknown"
}

// Gate asks the operator questions during a run.
type Gate interface {
	// Ask prompts for free text and re-prompts until validate accepts the
	// reply. A nil validate accepts anything, including the empty string.
	Ask(prompt string, validate func(string) error) (string, error)

	// Confirm asks a yes/no question and re-prompts on anything else.
	Confirm(prompt string) (bool, error)

	// Checkpoint asks ok/abort/repeat and re-prompts on anything else.
	Checkpoint(prompt string) (Answer, error)
}
