package models

import "testing"

func TestSource_Valid(t *testing.T) {
	tests := []struct {
		name   string
		source Source
		want   bool
	}{
		{"none is valid", SourceNone, true},
		{"knowledge_base is valid", SourceKnowledgeBase, true},
		{"web is valid", SourceWeb, true},
		{"empty string is invalid", Source(""), false},
		{"unknown source is invalid", Source("cache"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.source.Valid(); got != tt.want {
				t.Errorf("Source(%q).Valid() = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}

func TestSource_Label(t *testing.T) {
	tests := []struct {
		source Source
		want   string
	}{
		{SourceNone, "none"},
		{SourceKnowledgeBase, "knowledge base"},
		{SourceWeb, "web"},
		{Source("bogus"), "none"},
	}

	for _, tt := range tests {
		if got := tt.source.Label(); got != tt.want {
			t.Errorf("Source(%q).Label() = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestQuestionNode_IsRoot(t *testing.T) {
	root := QuestionNode{Text: "What was Acme's revenue?"}
	if !root.IsRoot() {
		t.Error("node without parent should be root")
	}

	child := QuestionNode{Text: "What was Acme's 2022 revenue?", ParentText: "What was Acme's revenue?", Depth: 1}
	if child.IsRoot() {
		t.Error("node with parent should not be root")
	}
}

func TestUserTurn(t *testing.T) {
	turn := UserTurn("hello")
	if turn.Role != RoleUser {
		t.Errorf("Role = %q, want %q", turn.Role, RoleUser)
	}
	if turn.Content != "hello" {
		t.Errorf("Content = %q, want %q", turn.Content, "hello")
	}
}
