package enrichment

import (
	"testing"

	"github.com/aivisible/prompt-pipeline/internal/models"
)

func TestDetectFeaturesText(t *testing.T) {
	f := DetectFeatures(models.NormalizedResponse{AnswerText: "hello"})
	if _, ok := f["text"]; !ok {
		t.Errorf("expected text feature, got %+v", f)
	}
}

func TestDetectFeaturesEmptyText(t *testing.T) {
	f := DetectFeatures(models.NormalizedResponse{})
	if _, ok := f["text"]; ok {
		t.Errorf("expected no text feature for empty answer")
	}
}

func TestDetectFeaturesImages(t *testing.T) {
	f := DetectFeatures(models.NormalizedResponse{RawMarkdown: "![alt](http://x/img.png) some text"})
	if _, ok := f["images"]; !ok {
		t.Errorf("expected images feature, got %+v", f)
	}
}

func TestDetectFeaturesTable(t *testing.T) {
	md := "| a | b |\n|---|---|\n| 1 | 2 |\n"
	f := DetectFeatures(models.NormalizedResponse{RawMarkdown: md})
	if _, ok := f["table"]; !ok {
		t.Errorf("expected table feature, got %+v", f)
	}
}

func TestDetectFeaturesTableBelowThreshold(t *testing.T) {
	md := "| a | b |\n|---|---|\n"
	f := DetectFeatures(models.NormalizedResponse{RawMarkdown: md})
	if _, ok := f["table"]; ok {
		t.Errorf("expected no table feature with only 2 matching lines, got %+v", f)
	}
}

func TestDetectFeaturesNavigationList(t *testing.T) {
	f := DetectFeatures(models.NormalizedResponse{AttachedLinks: 4})
	if _, ok := f["navigation_list"]; !ok {
		t.Errorf("expected navigation_list feature, got %+v", f)
	}

	f2 := DetectFeatures(models.NormalizedResponse{AttachedLinks: 3})
	if _, ok := f2["navigation_list"]; ok {
		t.Errorf("expected no navigation_list feature at exactly 3 links, got %+v", f2)
	}
}

func TestDetectFeaturesLocalBusinesses(t *testing.T) {
	f := DetectFeatures(models.NormalizedResponse{HasLocalBiz: true})
	if _, ok := f["local_businesses"]; !ok {
		t.Errorf("expected local_businesses feature, got %+v", f)
	}
}

func TestDetectFeaturesOnlyPresentKeysIncluded(t *testing.T) {
	f := DetectFeatures(models.NormalizedResponse{AnswerText: "hi"})
	if len(f) != 1 {
		t.Errorf("expected only the text feature present, got %+v", f)
	}
}
