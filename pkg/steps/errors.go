package steps

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRepeatStep is returned by a step when the operator asked for the step
// to run again. The runner discards the attempt and re-enters the step.
var ErrRepeatStep = errors.New("operator asked to repeat the step")

// UnknownStepError names a step outside the catalogue and lists what is
// available.
type UnknownStepError struct {
	Name  string
	Known []string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step %q (steps: %s)", e.Name, strings.Join(e.Known, ", "))
}

// InvalidStepRangeError reports a run range whose first step comes after
// its last.
type InvalidStepRangeError struct {
	First string
	Last  string
}

func (e *InvalidStepRangeError) Error() string {
	return fmt.Sprintf("invalid step range: %s comes after %s", e.First, e.Last)
}

// UndeclaredOutputError reports a step trying to record a value key it did
// not declare.
type UndeclaredOutputError struct {
	Step string
	Key  string
}

func (e *UndeclaredOutputError) Error() string {
	return fmt.Sprintf("step %s recorded undeclared output %q", e.Step, e.Key)
}
