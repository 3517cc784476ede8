package dialog

import "fmt"

// ScriptedGate replays a fixed sequence of answers. It backs --dry-run style
// runs and deterministic tests: each call consumes the next queued answer,
// and invalid scripted answers fail instead of re-prompting.
type ScriptedGate struct {
	Answers []string
	// Asked collects every prompt in order.
	Asked []string

	next int
}

// NewScriptedGate queues answers for replay.
func NewScriptedGate(answers ...string) *ScriptedGate {
	return &ScriptedGate{Answers: answers}
}

func (g *ScriptedGate) Ask(prompt string, validate func(string) error) (string, error) {
	answer, err := g.take(prompt)
	if err != nil {
		return "", err
	}
	if validate != nil {
		if vErr := validate(answer); vErr != nil {
			return "", fmt.Errorf("scripted answer %q to %q: %w", answer, prompt, vErr)
		}
	}
	return answer, nil
}

func (g *ScriptedGate) Confirm(prompt string) (bool, error) {
	answer, err := g.take(prompt)
	if err != nil {
		return false, err
	}
	switch answer {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return false, fmt.Errorf("scripted answer %q to %q: answer yes or no", answer, prompt)
}

func (g *ScriptedGate) Checkpoint(prompt string) (Answer, error) {
	answer, err := g.take(prompt)
	if err != nil {
		return AnswerAbort, err
	}
	switch answer {
	case "ok":
		return AnswerOK, nil
	case "abort":
		return AnswerAbort, nil
	case "repeat":
		return AnswerRepeat, nil
	}
	return AnswerAbort, fmt.Errorf("scripted answer %q to %q: answer ok, abort, or repeat", answer, prompt)
}

func (g *ScriptedGate) take(prompt string) (string, error) {
	g.Asked = append(g.Asked, prompt)
	if g.next >= len(g.Answers) {
		return "", fmt.Errorf("no scripted answer left for prompt %q", prompt)
	}
	answer := g.Answers[g.next]
	g.next++
	return answer, nil
}
