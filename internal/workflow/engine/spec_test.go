package engine

import (
	"errors"
	"testing"

	"github.com/MarioSri/docflow/internal/workflow/entity"
)

func TestRouteValidation(t *testing.T) {
	cases := []struct {
		name    string
		spec    RouteSpec
		wantErr bool
	}{
		{
			name: "valid sequential",
			spec: RouteSpec{Type: entity.RoutingSequential, Steps: []StepSpec{{Order: 0}, {Order: 1}}},
		},
		{
			name: "parallel without steps",
			spec: RouteSpec{Type: entity.RoutingParallel},
		},
		{
			name:    "unknown type",
			spec:    RouteSpec{Type: "zigzag", Steps: []StepSpec{{Order: 0}}},
			wantErr: true,
		},
		{
			name:    "sequential without steps",
			spec:    RouteSpec{Type: entity.RoutingSequential},
			wantErr: true,
		},
		{
			name:    "duplicate step order",
			spec:    RouteSpec{Type: entity.RoutingSequential, Steps: []StepSpec{{Order: 0}, {Order: 0}}},
			wantErr: true,
		},
		{
			name:    "step order out of range",
			spec:    RouteSpec{Type: entity.RoutingSequential, Steps: []StepSpec{{Order: 0}, {Order: 5}}},
			wantErr: true,
		},
		{
			name:    "bidirectional without bounce limit",
			spec:    RouteSpec{Type: entity.RoutingBidirectional, Steps: []StepSpec{{Order: 0}}},
			wantErr: true,
		},
		{
			name: "bidirectional with bounce limit",
			spec: RouteSpec{Type: entity.RoutingBidirectional, BounceLimit: 2, Steps: []StepSpec{{Order: 0}, {Order: 1}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.wantErr && !errors.Is(err, ErrInvalidRoute) {
				t.Fatalf("expected invalid route, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseSpecRoundTrip(t *testing.T) {
	spec := &RouteSpec{
		Type:        entity.RoutingBidirectional,
		BounceLimit: 3,
		Steps: []StepSpec{
			{Order: 0, Role: "hod", Required: 2, TimeoutMs: 30_000, EscalationRoles: []string{"dean"}},
			{Order: 1, Role: "registrar"},
		},
		Escalation: EscalationSpec{Enabled: true, TimeoutMs: 120_000, Cyclic: true},
	}

	parsed, err := ParseSpec(spec.Marshal())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.Type != spec.Type || parsed.BounceLimit != 3 {
		t.Fatalf("snapshot lost routing parameters: %+v", parsed)
	}
	if len(parsed.Steps) != 2 || parsed.Steps[0].EscalationRoles[0] != "dean" {
		t.Fatalf("snapshot lost step detail: %+v", parsed.Steps)
	}
	if !parsed.Escalation.Cyclic || parsed.Escalation.TimeoutMs != 120_000 {
		t.Fatalf("snapshot lost escalation policy: %+v", parsed.Escalation)
	}
}

func TestParseSpecRejectsMissingSnapshot(t *testing.T) {
	if _, err := ParseSpec(nil); !errors.Is(err, ErrInvalidRoute) {
		t.Fatalf("nil snapshot must be invalid, got %v", err)
	}
	if _, err := ParseSpec([]byte("{broken")); !errors.Is(err, ErrInvalidRoute) {
		t.Fatalf("corrupt snapshot must be invalid, got %v", err)
	}
}

func TestTimeoutForStepFallsBackToRouteLevel(t *testing.T) {
	spec := &RouteSpec{
		Type:       entity.RoutingSequential,
		Steps:      []StepSpec{{Order: 0, TimeoutMs: 5_000}, {Order: 1}},
		Escalation: EscalationSpec{Enabled: true, TimeoutMs: 60_000},
	}

	if got := spec.TimeoutForStep(0); got != 5_000 {
		t.Fatalf("step override expected 5000, got %d", got)
	}
	if got := spec.TimeoutForStep(1); got != 60_000 {
		t.Fatalf("fallback expected 60000, got %d", got)
	}
	if got := spec.TimeoutForStep(99); got != 60_000 {
		t.Fatalf("unconfigured step falls back, got %d", got)
	}
}
