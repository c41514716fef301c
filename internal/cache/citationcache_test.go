package cache

import (
	"math"
	"testing"
)

func TestDocIDLowercasesHostname(t *testing.T) {
	if got, want := docID("proj-1", "WWW.Acme.com"), "proj-1_www.acme.com"; got != want {
		t.Errorf("docID = %q, want %q", got, want)
	}
}

func TestEntryFromDocumentRequiresHostname(t *testing.T) {
	if _, ok := entryFromDocument(map[string]interface{}{}); ok {
		t.Errorf("expected entryFromDocument to fail without a hostname field")
	}
	entry, ok := entryFromDocument(map[string]interface{}{
		"hostname":   "acme.com",
		"normalized": "acme.com",
		"matched":    true,
	})
	if !ok {
		t.Fatalf("expected entryFromDocument to succeed")
	}
	if entry.Hostname != "acme.com" || !entry.Matched {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestHostnameVectorIsUnitLength(t *testing.T) {
	vec := hostnameVector("store.acme.com")
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if math.Abs(sumSquares-1) > 1e-3 {
		t.Errorf("expected unit-length vector, got sum-of-squares %v", sumSquares)
	}
}

func TestHostnameVectorIsDeterministic(t *testing.T) {
	a := hostnameVector("acme.com")
	b := hostnameVector("acme.com")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected deterministic vector, differed at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHostnameVectorTreatsWwwPrefixAsEquivalent(t *testing.T) {
	a := hostnameVector("www.acme.com")
	b := hostnameVector("acme.com")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected www.-stripped vector to match bare hostname at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHostnameVectorEmptyForShortStrings(t *testing.T) {
	vec := hostnameVector("a")
	for _, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector for a single-character hostname, got %v", vec)
		}
	}
}
