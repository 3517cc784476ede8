package steps

import (
	"context"

	"go.uber.org/zap"

	"github.com/jive-vlbi/evnpp/pkg/config"
	"github.com/jive-vlbi/evnpp/pkg/dialog"
	"github.com/jive-vlbi/evnpp/pkg/experiment"
	"github.com/jive-vlbi/evnpp/pkg/remote"
)

// Context is what a step body gets to work with. Besides the injected
// capabilities it buffers the step's command log and output values; the
// runner merges the buffer into the experiment only when the step succeeds.
type Context struct {
	Ctx  context.Context
	Exp  *experiment.Experiment
	Cfg  *config.Settings
	Exec remote.Executor
	Gate dialog.Gate
	Log  *zap.SugaredLogger

	step     string
	allowed  map[string]bool
	commands []string
	values   map[string]string
}

// NewContext builds the run context for one attempt of a step.
func NewContext(ctx context.Context, d Definition, e *experiment.Experiment,
	cfg *config.Settings, exec remote.Executor, gate dialog.Gate, log *zap.SugaredLogger) *Context {
	allowed := make(map[string]bool, len(d.Outputs))
	for _, k := range d.Outputs {
		allowed[k] = true
	}
	return &Context{
		Ctx:     ctx,
		Exp:     e,
		Cfg:     cfg,
		Exec:    exec,
		Gate:    gate,
		Log:     log,
		step:    d.Name,
		allowed: allowed,
		values:  make(map[string]string),
	}
}

// Run executes a command through the executor and appends it to the step's
// command log, whether it succeeds or not.
func (c *Context) Run(host, command string, args ...string) (*remote.Result, error) {
	res, err := c.Exec.Execute(c.Ctx, host, command, args...)
	if res != nil {
		c.commands = append(c.commands, res.CommandLine())
	}
	return res, err
}

// SetValue records an output value under a declared key.
func (c *Context) SetValue(key, value string) error {
	if !c.allowed[key] {
		return &UndeclaredOutputError{Step: c.step, Key: key}
	}
	c.values[key] = value
	return nil
}

// Value reads back a value recorded earlier in this attempt.
func (c *Context) Value(key string) string { return c.values[key] }

// Commands returns the commands issued so far in this attempt.
func (c *Context) Commands() []string { return c.commands }

// Values returns the recorded outputs of this attempt.
func (c *Context) Values() map[string]string { return c.values }

// Checkpoint asks the operator to accept, abort or repeat and maps the
// answer onto control flow: nil, dialog.ErrUserAborted or ErrRepeatStep.
func (c *Context) Checkpoint(prompt string) error {
	ans, err := c.Gate.Checkpoint(prompt)
	if err != nil {
		return err
	}
	switch ans {
	case dialog.AnswerAbort:
		return dialog.ErrUserAborted
	case dialog.AnswerRepeat:
		return ErrRepeatStep
	}
	return nil
}
