package mep

import (
	"errors"
	"testing"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

func TestLookup_AllVariants(t *testing.T) {
	for _, v := range Variants {
		p := Lookup(v)
		if p == nil {
			t.Fatalf("no pattern for %s", v)
		}
		if p.Variant() != v {
			t.Errorf("expected variant %s, got %s", v, p.Variant())
		}
		if !p.Legal(p.Initiator()) {
			t.Errorf("%s: initiator %s must be legal", v, p.Initiator())
		}
	}

	if Lookup(Variant(99)) != nil {
		t.Error("expected nil pattern for unknown variant")
	}
}

func TestPattern_LegalSlots(t *testing.T) {
	tests := []struct {
		variant Variant
		legal   []Slot
	}{
		{InOnly, []Slot{In}},
		{RobustInOnly, []Slot{In, InFault}},
		{InOut, []Slot{In, Out, InFault, OutFault}},
		{OutOnly, []Slot{Out}},
		{RobustOutOnly, []Slot{Out, OutFault}},
		{OutIn, []Slot{In, Out, InFault, OutFault}},
	}

	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			p := Lookup(tt.variant)
			legal := make(map[Slot]bool)
			for _, s := range tt.legal {
				legal[s] = true
			}

			for _, s := range allSlots {
				if p.Legal(s) != legal[s] {
					t.Errorf("slot %s: expected legal=%v", s, legal[s])
				}
				err := p.Check(s)
				if legal[s] && err != nil {
					t.Errorf("slot %s: unexpected error %v", s, err)
				}
				if !legal[s] && !errors.Is(err, ErrUnsupportedSlot) {
					t.Errorf("slot %s: expected ErrUnsupportedSlot, got %v", s, err)
				}
			}

			if got := p.Slots(); len(got) != len(tt.legal) {
				t.Errorf("expected %d slots, got %v", len(tt.legal), got)
			}
		})
	}
}

func TestPattern_TerminalAndPrerequisites(t *testing.T) {
	inOut := Lookup(InOut)
	if inOut.Terminal(In) {
		t.Error("in must not complete in-out")
	}
	for _, s := range []Slot{Out, OutFault, InFault} {
		if !inOut.Terminal(s) {
			t.Errorf("%s must complete in-out", s)
		}
	}
	if req, ok := inOut.Prerequisite(Out); !ok || req != In {
		t.Errorf("expected out to require in, got %v %v", req, ok)
	}
	if _, ok := inOut.Prerequisite(InFault); ok {
		t.Error("inFault must not have a prerequisite in in-out")
	}

	outIn := Lookup(OutIn)
	if outIn.Terminal(Out) {
		t.Error("out must not complete out-in")
	}
	if req, ok := outIn.Prerequisite(In); !ok || req != Out {
		t.Errorf("expected in to require out, got %v %v", req, ok)
	}

	robust := Lookup(RobustInOnly)
	if !robust.Terminal(In) || !robust.Terminal(InFault) {
		t.Error("both in and inFault must complete robust-in-only")
	}
}

func TestPattern_Flows(t *testing.T) {
	tests := []struct {
		variant Variant
		flows   []message.Direction
	}{
		{InOnly, []message.Direction{message.In, message.InFault, message.OutFault}},
		{RobustInOnly, []message.Direction{message.In, message.InFault}},
		{InOut, []message.Direction{message.In, message.Out, message.InFault, message.OutFault}},
		{OutOnly, []message.Direction{message.Out, message.OutFault}},
		{RobustOutOnly, []message.Direction{message.Out, message.OutFault}},
		{OutIn, []message.Direction{message.In, message.Out, message.InFault, message.OutFault}},
	}

	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			p := Lookup(tt.variant)
			got := p.Flows()
			if len(got) != len(tt.flows) {
				t.Fatalf("expected flows %v, got %v", tt.flows, got)
			}
			for i := range got {
				if got[i] != tt.flows[i] {
					t.Errorf("flow %d: expected %s, got %s", i, tt.flows[i], got[i])
				}
				if !p.HasFlow(got[i]) {
					t.Errorf("HasFlow(%s) = false", got[i])
				}
			}
		})
	}

	if Lookup(InOnly).HasFlow(message.Out) {
		t.Error("in-only must not have an out flow")
	}
	if Lookup(InOnly).Legal(OutFault) {
		t.Error("the in-only outFault flow must not make the slot legal")
	}
}

func TestSlotDirectionMapping(t *testing.T) {
	for _, s := range allSlots {
		if SlotFor(s.Direction()) != s {
			t.Errorf("slot %s does not round trip", s)
		}
		parsed, err := ParseSlot(s.String())
		if err != nil || parsed != s {
			t.Errorf("ParseSlot(%q) = %v, %v", s.String(), parsed, err)
		}
	}

	if _, err := ParseSlot("bogus"); !errors.Is(err, ErrUnsupportedSlot) {
		t.Errorf("expected ErrUnsupportedSlot, got %v", err)
	}
	if Lookup(InOut).Legal(SlotFor(message.Direction(9))) {
		t.Error("invalid slot must never be legal")
	}
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		variant Variant
	}{
		{"http://www.w3.org/ns/wsdl/in-only", InOnly},
		{"http://www.w3.org/ns/wsdl/robust-in-only", RobustInOnly},
		{"http://www.w3.org/2004/08/wsdl/in-out", InOut},
		{"out-only", OutOnly},
		{"Robust-Out-Only", RobustOutOnly},
		{" out-in ", OutIn},
	}

	for _, tt := range tests {
		v, err := ParseURI(tt.uri)
		if err != nil {
			t.Errorf("ParseURI(%q): unexpected error %v", tt.uri, err)
			continue
		}
		if v != tt.variant {
			t.Errorf("ParseURI(%q) = %s, expected %s", tt.uri, v, tt.variant)
		}
	}

	if _, err := ParseURI("http://www.w3.org/ns/wsdl/in-optional-out"); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestVariantURI(t *testing.T) {
	if InOut.URI() != "http://www.w3.org/ns/wsdl/in-out" {
		t.Errorf("unexpected URI: %s", InOut.URI())
	}
	if Variant(99).String() != "unknown" {
		t.Errorf("unexpected name: %s", Variant(99).String())
	}
}

func TestMEPConstants(t *testing.T) {
	// ebMS 3.0 core namespace URIs
	if OneWay != "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/oneWay" {
		t.Errorf("unexpected OneWay URI: %s", OneWay)
	}
	if TwoWay != "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/twoWay" {
		t.Errorf("unexpected TwoWay URI: %s", TwoWay)
	}
	if PushAndPush != "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/pushAndPush" {
		t.Errorf("unexpected PushAndPush URI: %s", PushAndPush)
	}
}

func TestFromEBMS(t *testing.T) {
	tests := []struct {
		name      string
		mep       MEPType
		binding   MEPBinding
		initiator bool
		expected  Variant
		wantErr   bool
	}{
		{"one-way sender", OneWay, Push, true, OutOnly, false},
		{"one-way receiver", OneWay, Push, false, InOnly, false},
		{"one-way pull receiver", OneWay, Pull, false, InOnly, false},
		{"two-way sender", TwoWay, PushAndPush, true, OutIn, false},
		{"two-way receiver", TwoWay, PushAndPull, false, InOut, false},
		{"one-way with two-way binding", OneWay, PushAndPush, true, 0, true},
		{"two-way with push binding", TwoWay, Push, true, 0, true},
		{"unknown mep", MEPType("urn:nope"), Push, true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromEBMS(tt.mep, tt.binding, tt.initiator)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownVariant) {
					t.Errorf("expected ErrUnknownVariant, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, v)
			}
		})
	}
}
