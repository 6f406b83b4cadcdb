package semanticindex

import (
	"testing"

	"github.com/josephgoksu/obbywatch/internal/store"
)

func TestExtractBulletFormat(t *testing.T) {
	resp := "- added retry logic\n- fixed debounce window\n"
	e := Extract(resp)
	if e.Summary != "added retry logic; fixed debounce window" {
		t.Errorf("unexpected summary: %q", e.Summary)
	}
	if e.Impact != store.ImpactModerate {
		t.Errorf("expected moderate impact for 2 bullets, got %q", e.Impact)
	}
}

func TestExtractBulletFormatSignificant(t *testing.T) {
	resp := "- a\n- b\n- c\n- d\n"
	e := Extract(resp)
	if e.Impact != store.ImpactSignificant {
		t.Errorf("expected significant impact for 4 bullets, got %q", e.Impact)
	}
}

func TestExtractBulletFormatBrief(t *testing.T) {
	resp := "- no meaningful changes\n"
	e := Extract(resp)
	if e.Impact != store.ImpactBrief {
		t.Errorf("expected brief impact for 1 bullet, got %q", e.Impact)
	}
}

func TestExtractPrefixedFormat(t *testing.T) {
	resp := "**Summary**: refactored the tracker\n**Topics**: tracker, diffing\n**Keywords**: gate, hash\n**Impact**: significant\n"
	e := Extract(resp)
	if e.Summary != "refactored the tracker" {
		t.Errorf("unexpected summary: %q", e.Summary)
	}
	if len(e.Topics) != 2 || e.Topics[0] != "tracker" {
		t.Errorf("unexpected topics: %+v", e.Topics)
	}
	if len(e.Keywords) != 2 {
		t.Errorf("unexpected keywords: %+v", e.Keywords)
	}
	if e.Impact != store.ImpactSignificant {
		t.Errorf("expected significant impact, got %q", e.Impact)
	}
}

func TestExtractPrefixedFormatDefaultsToBrief(t *testing.T) {
	resp := "**Summary**: nothing notable\n"
	e := Extract(resp)
	if e.Impact != store.ImpactBrief {
		t.Errorf("expected default brief impact, got %q", e.Impact)
	}
}

func TestNormalizeImpactUnknownDefaultsToBrief(t *testing.T) {
	if got := normalizeImpact("catastrophic"); got != store.ImpactBrief {
		t.Errorf("expected brief for unknown impact word, got %q", got)
	}
}
