package dialog

import (
	"fmt"
	"strings"

	"github.com/chzyer/readline"
)

// TerminalGate prompts on the controlling terminal via readline, so the
// operator gets line editing and history while answering.
type TerminalGate struct{}

// NewTerminalGate returns a gate reading from the terminal.
func NewTerminalGate() *TerminalGate {
	return &TerminalGate{}
}

func (g *TerminalGate) Ask(prompt string, validate func(string) error) (string, error) {
	rl, err := readline.New("❓ " + prompt + " ")
	if err != nil {
		return "", fmt.Errorf("open prompt: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				return "", ErrUserAborted
			}
			return "", fmt.Errorf("read answer: %w", err)
		}
		line = strings.TrimSpace(line)
		if validate == nil {
			return line, nil
		}
		if vErr := validate(line); vErr != nil {
			fmt.Printf("   ✗ %v\n", vErr)
			continue
		}
		return line, nil
	}
}

func (g *TerminalGate) Confirm(prompt string) (bool, error) {
	answer, err := g.Ask(prompt+" (yes/no)", func(s string) error {
		switch strings.ToLower(s) {
		case "y", "yes", "n", "no":
			return nil
		}
		return fmt.Errorf("answer yes or no")
	})
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

func (g *TerminalGate) Checkpoint(prompt string) (Answer, error) {
	answer, err := g.Ask(prompt+" (ok/abort/repeat)", func(s string) error {
		switch strings.ToLower(s) {
		case "ok", "abort", "repeat":
			return nil
		}
		return fmt.Errorf("answer ok, abort, or repeat")
	})
	if err != nil {
		return AnswerAbort, err
	}
	switch strings.ToLower(answer) {
	case "abort":
		return AnswerAbort, nil
	case "repeat":
		return AnswerRepeat, nil
	}
	return AnswerOK, nil
}
