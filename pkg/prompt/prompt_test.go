package prompt

import (
	"errors"
	"testing"
)

func TestScripted(t *testing.T) {
	p := NewScripted("", "org.acme", "2", "webapp", "", "no", "maybe")
	options := []string{"quickstart", "webapp", "site"}

	if v, err := p.Input("groupId", "com.example"); err != nil || v != "com.example" {
		t.Errorf("Input() = %q, %v; want default", v, err)
	}
	if v, err := p.Input("groupId", "com.example"); err != nil || v != "org.acme" {
		t.Errorf("Input() = %q, %v", v, err)
	}
	if i, err := p.Select("archetype", options, 0); err != nil || i != 1 {
		t.Errorf("Select() by number = %d, %v", i, err)
	}
	if i, err := p.Select("archetype", options, 0); err != nil || i != 1 {
		t.Errorf("Select() by name = %d, %v", i, err)
	}
	if ok, err := p.Confirm("Y", true); err != nil || !ok {
		t.Errorf("Confirm() default = %v, %v", ok, err)
	}
	if ok, err := p.Confirm("Y", true); err != nil || ok {
		t.Errorf("Confirm() = %v, %v", ok, err)
	}
	if _, err := p.Confirm("Y", true); err == nil {
		t.Error("expected error for an invalid confirmation")
	}
	if p.Remaining() != 0 || len(p.Asked) != 7 {
		t.Errorf("Remaining() = %d, asked %d", p.Remaining(), len(p.Asked))
	}
	if _, err := p.Input("more", ""); !errors.Is(err, ErrNoAnswer) {
		t.Errorf("expected ErrNoAnswer, got %v", err)
	}
}

func TestScripted_SelectInvalid(t *testing.T) {
	p := NewScripted("7", "")
	if _, err := p.Select("pick", []string{"a"}, 0); err == nil {
		t.Error("expected error for out of range choice")
	}
	if _, err := p.Select("pick", []string{"a"}, -1); err == nil {
		t.Error("expected error without a default")
	}
}
