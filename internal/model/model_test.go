package model

import "testing"

func TestWorkItemAccessors(t *testing.T) {
	item := WorkItem{
		ID: 34,
		Fields: map[string]interface{}{
			FieldWorkItemType: "Bug",
			FieldTitle:        "Bug number 1",
			"Custom.Points":   3,
		},
	}
	if item.Type() != "Bug" {
		t.Errorf("unexpected type %q", item.Type())
	}
	if item.Title() != "Bug number 1" {
		t.Errorf("unexpected title %q", item.Title())
	}

	var empty WorkItem
	if empty.Type() != "" || empty.Title() != "" {
		t.Error("missing fields should read as empty strings")
	}
}
