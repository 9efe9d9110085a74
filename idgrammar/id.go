// Package idgrammar implements the canonical content-identifier grammar and
// the well-known derived constants that depend on it.
package idgrammar

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Scheme is the canonical internal id scheme.
const Scheme = "ekn:///"

// ThirdPartyScheme prefixes identifiers synthesized by the third-party
// archive backend.
const ThirdPartyScheme = "ekn+zim:///"

// LinkTableRecordID is the SHA-1 of the ASCII string "link-table",
// lowercase hex, used as the well-known record id for a shard's link table.
const LinkTableRecordID = "4dba9091495e8f277893e0d400e9e092f9f6f551"

var hexIDPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// IsValidHexID reports whether s is exactly 40 lowercase hex digits — the
// bare hex tail carried inside a canonical id, not the canonical id itself.
func IsValidHexID(s string) bool {
	return hexIDPattern.MatchString(s)
}

// IsValidID reports whether s is a canonical id: Scheme followed by exactly
// 40 lowercase hex digits (spec §6.1). entity.Common().ID always carries
// this form (metaparse builds it via Canonical), so is_valid_id(e.id) holds
// for every parsed entity.
func IsValidID(s string) bool {
	hexID, ok := strings.CutPrefix(s, Scheme)
	if !ok {
		return false
	}
	return IsValidHexID(hexID)
}

// Canonical builds the canonical ekn:/// id string for a 40-hex-digit id.
func Canonical(hexID string) string {
	return Scheme + hexID
}

// ExtractHexID extracts the hex id from a native ekn:// URI of the form
// ekn://<domain>/<hex-id>[/<resource>]. It returns ok=false if the URI does
// not carry a valid trailing hex id in the expected position.
func ExtractHexID(uri string) (hexID string, ok bool) {
	const nativePrefix = "ekn://"
	if !strings.HasPrefix(uri, nativePrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(uri, nativePrefix)
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 {
		return "", false
	}
	candidate := parts[1]
	if !IsValidHexID(candidate) {
		return "", false
	}
	return candidate, true
}

// SyntheticID derives a deterministic 40-hex-digit id from arbitrary seed
// bytes. It exists only to give test fixtures with an empty id a
// well-formed, stable identifier; production records always carry a real id.
func SyntheticID(seed string) string {
	sum := sha1.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// ParseThirdPartyPath splits a bare third-party namespace path of the form
// "<namespace-char>/<url-suffix>" as used by FindByID on the zim backend.
func ParseThirdPartyPath(path string) (namespace byte, suffix string, err error) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || len(parts[0]) != 1 {
		return 0, "", fmt.Errorf("malformed third-party path %q", path)
	}
	return parts[0][0], parts[1], nil
}
