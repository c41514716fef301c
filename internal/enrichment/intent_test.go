package enrichment

import (
	"strings"
	"testing"
)

func TestClassifyIntentTransactional(t *testing.T) {
	result := ClassifyIntent("Where can I buy this and order it today?", FeatureSet{"products": 1})
	if result.Primary != "transactional" {
		t.Errorf("expected transactional, got %s (scores %+v)", result.Primary, result.Scores)
	}
}

func TestClassifyIntentLocal(t *testing.T) {
	result := ClassifyIntent("Find a restaurant near me with directions and hours", FeatureSet{"local_businesses": 1})
	if result.Primary != "local" {
		t.Errorf("expected local, got %s (scores %+v)", result.Primary, result.Scores)
	}
}

func TestClassifyIntentInformationalBaseline(t *testing.T) {
	result := ClassifyIntent("just some neutral sentence with nothing special", FeatureSet{})
	if result.Primary != "informational" {
		t.Errorf("expected informational baseline to win with no signals, got %s", result.Primary)
	}
}

func TestClassifyIntentTieBreakOrder(t *testing.T) {
	// 20 "best" hits give commercial 20, matching informational's baseline 20.
	result := ClassifyIntent(strings.Repeat("best ", 20), FeatureSet{})
	if result.Scores["commercial"] != result.Scores["informational"] {
		t.Fatalf("expected a commercial/informational tie, got scores %+v", result.Scores)
	}
	if result.Primary != "commercial" {
		t.Errorf("tie should resolve to commercial per fixed order, got %s", result.Primary)
	}
}

func TestClassifyIntentConfidenceInRangeWithNoSignal(t *testing.T) {
	result := ClassifyIntent("", FeatureSet{})
	if result.Confidence < 0 || result.Confidence > 100 {
		t.Errorf("confidence out of range: %d", result.Confidence)
	}
}
