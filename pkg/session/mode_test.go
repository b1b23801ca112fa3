package session

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to RunMode
		want     bool
	}{
		{Observing, Controlling, true},
		{Observing, Waiting, true},
		{Controlling, Observing, true},
		{Controlling, Waiting, true},
		{Waiting, Controlling, true},
		{Waiting, Observing, false},
		{Observing, Observing, true},
		{Controlling, Controlling, true},
		{Waiting, Waiting, true},
		{RunMode(9), Observing, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestConnectionTransition(t *testing.T) {
	c := NewConnection("c1", nil)
	if c.Mode() != Observing {
		t.Fatalf("new connection mode = %s, want OBSERVING", c.Mode())
	}

	if err := c.transition(Waiting); err != nil {
		t.Fatalf("OBSERVING -> WAITING: %v", err)
	}

	err := c.transition(Observing)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("WAITING -> OBSERVING error = %v, want ErrIllegalTransition", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.ConnID != "c1" || te.From != Waiting || te.To != Observing {
		t.Errorf("TransitionError = %+v", te)
	}
	if c.Mode() != Waiting {
		t.Errorf("mode after rejected transition = %s, want WAITING", c.Mode())
	}

	if err := c.transition(Controlling); err != nil {
		t.Fatalf("WAITING -> CONTROLLING: %v", err)
	}
}

func TestRunModeString(t *testing.T) {
	if Controlling.String() != "CONTROLLING" {
		t.Errorf("String() = %q", Controlling.String())
	}
	if RunMode(7).String() != "RunMode(7)" {
		t.Errorf("String() = %q", RunMode(7).String())
	}
}

func TestParseBehaviorMode(t *testing.T) {
	if m, ok := ParseBehaviorMode("MultiUser"); !ok || m != Multiuser {
		t.Errorf("ParseBehaviorMode(MultiUser) = %v, %v", m, ok)
	}
	if m, ok := ParseBehaviorMode("observe"); !ok || m != Observe {
		t.Errorf("ParseBehaviorMode(observe) = %v, %v", m, ok)
	}
	if _, ok := ParseBehaviorMode("solo"); ok {
		t.Error("ParseBehaviorMode(solo) should fail")
	}
}
