package provider

import (
	"strings"
	"testing"
)

func TestSystemFor(t *testing.T) {
	for _, tier := range []PromptTier{TierStructured, TierStrict, TierEmergency} {
		t.Run(string(tier), func(t *testing.T) {
			out := SystemFor(tier, "")
			for _, field := range []string{"answer", "confidence", "evidence", "alternatives"} {
				if !strings.Contains(out, field) {
					t.Errorf("tier %s instruction missing schema field %q", tier, field)
				}
			}
		})
	}
}

func TestSystemFor_PrependsUserSystem(t *testing.T) {
	out := SystemFor(TierStrict, "You are a pirate.")
	if !strings.HasPrefix(out, "You are a pirate.") {
		t.Errorf("user system prompt not prepended: %q", out[:40])
	}
	if !strings.Contains(out, "ONLY") {
		t.Errorf("strict tier wording missing")
	}
}

func TestSystemFor_EmergencyMentionsFinalAttempt(t *testing.T) {
	out := SystemFor(TierEmergency, "")
	if !strings.Contains(out, "FINAL attempt") {
		t.Errorf("emergency tier should declare the final attempt: %q", out)
	}
}

func TestSystemFor_UnknownTierFallsBack(t *testing.T) {
	out := SystemFor(PromptTier("bogus"), "")
	if !strings.Contains(out, "answer") {
		t.Errorf("unknown tier should fall back to the structured instruction")
	}
}
