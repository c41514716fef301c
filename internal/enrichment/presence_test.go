package enrichment

import "testing"

func TestBrandPresenceCaseInsensitive(t *testing.T) {
	p := BrandPresence("Acme Corp is great. acme corp ships fast.", []string{"Acme Corp"})
	if !p.AnyMatch {
		t.Fatalf("expected a match")
	}
	if p.Total != 2 {
		t.Errorf("expected total 2, got %d", p.Total)
	}
}

func TestBrandPresenceAccentInsensitive(t *testing.T) {
	p := BrandPresence("We recommend Café Nova for dessert.", []string{"Cafe Nova"})
	if !p.AnyMatch {
		t.Fatalf("expected accent-insensitive match, got none")
	}
}

func TestBrandPresenceCurlyQuotes(t *testing.T) {
	p := BrandPresence("It’s the best choice around.", []string{"It's"})
	if !p.AnyMatch {
		t.Fatalf("expected quote-normalized match")
	}
}

func TestBrandPresenceWordBoundary(t *testing.T) {
	p := BrandPresence("Megacorp announced news today.", []string{"Corp"})
	if p.AnyMatch {
		t.Errorf("expected no match for substring inside another word, got match")
	}
}

func TestBrandPresenceNoMatch(t *testing.T) {
	p := BrandPresence("Nothing relevant here.", []string{"Acme"})
	if p.AnyMatch || p.Total != 0 {
		t.Errorf("expected no match, got %+v", p)
	}
}

func TestDomainPresence(t *testing.T) {
	domains := []string{"example.com", "acme.com"}
	p := DomainPresence(domains, []string{"example.com"})
	if !p.AnyMatch || p.Total != 1 {
		t.Errorf("expected single match, got %+v", p)
	}
}
