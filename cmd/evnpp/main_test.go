package main

import (
	"strings"
	"testing"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
	"github.com/jive-vlbi/evnpp/pkg/steps"
)

func TestEditHelpListsEveryAcceptedForm(t *testing.T) {
	for _, field := range experiment.EditableFields {
		if !strings.Contains(editCmd.Long, field) {
			t.Errorf("edit help does not mention %q", field)
		}
	}
	if !strings.Contains(editCmd.Long, "source:<name>") {
		t.Error("edit help does not mention the source:<name> form")
	}
}

func TestExecHelpListsTheCommandTable(t *testing.T) {
	for _, name := range steps.ToolNames() {
		if !strings.Contains(execCmd.Long, name) {
			t.Errorf("exec help does not mention %q", name)
		}
	}
}
