package idgrammar

import "testing"

func TestIsValidHexID(t *testing.T) {
	valid := "4dba9091495e8f277893e0d400e9e092f9f6f551"
	if !IsValidHexID(valid) {
		t.Fatalf("expected %q to be valid", valid)
	}
	if IsValidHexID("not-hex") {
		t.Fatalf("expected non-hex string to be invalid")
	}
	if IsValidHexID(valid[:39]) {
		t.Fatalf("expected a short id to be invalid")
	}
}

func TestIsValidID(t *testing.T) {
	hexID := "4dba9091495e8f277893e0d400e9e092f9f6f551"
	if !IsValidID(Canonical(hexID)) {
		t.Fatalf("expected the canonical id to be valid")
	}
	if IsValidID(hexID) {
		t.Fatalf("expected a bare hex id without the scheme to be invalid")
	}
	if IsValidID(Canonical(hexID[:39])) {
		t.Fatalf("expected a canonical id with a short hex tail to be invalid")
	}
}

func TestCanonical(t *testing.T) {
	hexID := "4dba9091495e8f277893e0d400e9e092f9f6f551"
	got := Canonical(hexID)
	want := "ekn:///" + hexID
	if got != want {
		t.Fatalf("Canonical(%q) = %q, want %q", hexID, got, want)
	}
}

func TestExtractHexID(t *testing.T) {
	hexID := "4dba9091495e8f277893e0d400e9e092f9f6f551"
	uri := "ekn://myapp.com/" + hexID
	got, ok := ExtractHexID(uri)
	if !ok || got != hexID {
		t.Fatalf("ExtractHexID(%q) = (%q, %v), want (%q, true)", uri, got, ok, hexID)
	}

	if _, ok := ExtractHexID("ekn://myapp.com/not-a-hex-id"); ok {
		t.Fatalf("expected ExtractHexID to reject a malformed id segment")
	}
	if _, ok := ExtractHexID("https://example.com/" + hexID); ok {
		t.Fatalf("expected ExtractHexID to reject a non-ekn scheme")
	}
}

func TestExtractHexIDWithResourceSuffix(t *testing.T) {
	hexID := "4dba9091495e8f277893e0d400e9e092f9f6f551"
	uri := "ekn://myapp.com/" + hexID + "/thumbnail"
	got, ok := ExtractHexID(uri)
	if !ok || got != hexID {
		t.Fatalf("ExtractHexID(%q) = (%q, %v), want (%q, true)", uri, got, ok, hexID)
	}
}

func TestSyntheticIDIsDeterministic(t *testing.T) {
	a := SyntheticID("seed-1")
	b := SyntheticID("seed-1")
	c := SyntheticID("seed-2")
	if a != b {
		t.Fatalf("SyntheticID must be deterministic for the same seed")
	}
	if a == c {
		t.Fatalf("SyntheticID must differ for different seeds")
	}
	if !IsValidHexID(a) {
		t.Fatalf("SyntheticID must produce a well-formed hex id")
	}
}

func TestParseThirdPartyPath(t *testing.T) {
	ns, suffix, err := ParseThirdPartyPath("A/some/article")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns != 'A' || suffix != "some/article" {
		t.Fatalf("got (%c, %q), want ('A', \"some/article\")", ns, suffix)
	}

	if _, _, err := ParseThirdPartyPath("no-slash"); err == nil {
		t.Fatalf("expected an error for a path with no namespace separator")
	}
}
