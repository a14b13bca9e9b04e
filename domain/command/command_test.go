package command

import (
	"errors"
	"testing"
)

func TestDeriveHandler(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"cooldown", "main"},
		{"foo bar-baz", "barBaz"},
		{"cooldown toggle-moderators", "toggleModerators"},
		{"points set", "set"},
		{"top follow-age-check extra", "followAgeCheck"},
		{"cmd a-b-c", "aBC"},
	}
	for _, tt := range tests {
		if got := DeriveHandler(tt.name); got != tt.want {
			t.Errorf("DeriveHandler(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDecl_Normalize(t *testing.T) {
	d, err := Decl{Name: "points get"}.Normalize("viewers")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if d.Command != "points get" {
		t.Errorf("Command = %q, want declaration name", d.Command)
	}
	if d.Handler != "get" {
		t.Errorf("Handler = %q, want get", d.Handler)
	}
	if d.Permission != "viewers" {
		t.Errorf("Permission = %q, want viewers", d.Permission)
	}
}

func TestDecl_NormalizeKeepsExplicitFields(t *testing.T) {
	d, err := Decl{
		Name:       "cooldown",
		Command:    "cd",
		Handler:    "custom",
		Permission: "moderators",
	}.Normalize("viewers")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if d.Command != "cd" || d.Handler != "custom" || d.Permission != "moderators" {
		t.Errorf("Normalize() overwrote explicit fields: %+v", d)
	}
}

func TestDecl_NormalizeEmptyName(t *testing.T) {
	if _, err := (Decl{Name: "  "}).Normalize("viewers"); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Normalize() error = %v, want ErrEmptyName", err)
	}
}

func TestParserDecl_Normalize(t *testing.T) {
	p, err := ParserDecl{Name: "messages"}.Normalize("viewers")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if p.Priority != PriorityLow {
		t.Errorf("Priority = %v, want low default", p.Priority)
	}
	if p.Permission != "viewers" {
		t.Errorf("Permission = %q, want viewers", p.Permission)
	}

	if _, err := (ParserDecl{}).Normalize("viewers"); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Normalize() error = %v, want ErrEmptyName", err)
	}
}
