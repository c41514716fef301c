package enrichment

import (
	"testing"
	"time"

	"github.com/aivisible/prompt-pipeline/internal/models"
)

func TestLCPCitationCountCapped(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	citations := make([]models.Citation, 0, 12)
	for i := 0; i < 12; i++ {
		citations = append(citations, models.Citation{URL: "https://host" + string(rune('a'+i)) + ".com/page"})
	}
	got := LCP(citations, FeatureSet{}, now)
	if got != 64 {
		t.Errorf("expected score capped at 8 hosts * 8 = 64, got %d", got)
	}
}

func TestLCPRecentCitationBonus(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * 24 * time.Hour)
	citations := []models.Citation{{URL: "https://host.com/a", PublishedAt: &recent}}
	got := LCP(citations, FeatureSet{}, now)
	if got != 8+10 {
		t.Errorf("expected 1 host (8) + recency bonus (10) = 18, got %d", got)
	}
}

func TestLCPFeatureDiversityBonus(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	features := FeatureSet{"text": 1, "table": 3, "navigation_list": 5}
	got := LCP(nil, features, now)
	want := 10 + 6
	if got != want {
		t.Errorf("expected %d, got %d", want, got)
	}
}

func TestLCPNeverExceeds100(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	citations := make([]models.Citation, 0, 10)
	for i := 0; i < 10; i++ {
		citations = append(citations, models.Citation{URL: "https://host" + string(rune('a'+i)) + ".com", PublishedAt: &recent})
	}
	features := FeatureSet{"a": 1, "b": 1, "navigation_list": 1}
	got := LCP(citations, features, now)
	want := 8*8 + 10 + 10 + 6
	if got != want {
		t.Errorf("expected %d, got %d", want, got)
	}
	if got > 100 {
		t.Errorf("score must never exceed 100, got %d", got)
	}
}

func TestActionabilityWeights(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	features := FeatureSet{"table": 1, "products": 1, "local_businesses": 1, "images": 1, "navigation_list": 1}
	got := Actionability(nil, features, now)
	want := 30 + 20 + 20 + 10 + 10
	if got != want {
		t.Errorf("expected %d, got %d", want, got)
	}
}

func TestActionabilityStalenessBonus(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-400 * 24 * time.Hour)
	citations := []models.Citation{{URL: "https://host.com", PublishedAt: &old}}
	got := Actionability(citations, FeatureSet{}, now)
	if got != 10 {
		t.Errorf("expected staleness bonus of 10, got %d", got)
	}
}

func TestActionabilityNoStalenessBonusWhenRecent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * 24 * time.Hour)
	citations := []models.Citation{{URL: "https://host.com", PublishedAt: &recent}}
	got := Actionability(citations, FeatureSet{}, now)
	if got != 0 {
		t.Errorf("expected no staleness bonus for recent citation, got %d", got)
	}
}

func TestNormalizeCitationStripsSchemeWWWQueryFragment(t *testing.T) {
	c := models.Citation{
		Title: "Example",
		URL:   "https://www.example.com/path/to/page?q=1#section",
	}
	got := NormalizeCitation(c)
	if got.Domain != "example.com" {
		t.Errorf("expected domain example.com, got %s", got.Domain)
	}
	if got.URL != "example.com/path/to/page" {
		t.Errorf("expected path kept without query/fragment, got %s", got.URL)
	}
}
