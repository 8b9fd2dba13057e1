package models

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"strings"
)

// BuildID computes the deterministic memory id for a (domain, channel,
// title) triple: lower_snake(domain) + ":" + channel + ":" + shortHash(title).
// Ingestion relies on this being pure and stable across runs so that
// re-ingesting the same title under the same domain/channel is a no-op.
func BuildID(domain, channel, title string) string {
	return lowerSnake(domain) + ":" + channel + ":" + shortHash(title)
}

func lowerSnake(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	prevDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash && b.Len() > 0 {
				b.WriteByte('_')
				prevDash = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return GeneralDomain
	}
	return out
}

// shortHash returns the first 10 hex characters of the sha256 of s, used as
// a compact, collision-resistant suffix inside a memory id.
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:10]
}

// Fingerprint returns a 16-byte hex digest (sha256 truncated) used as the
// Meta value keyed by "atomize_hash:<path>" to skip re-atomizing an
// unchanged source file.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:16])
}

// ContentHash computes a cheap FNV-1a hash of a memory's title+detail,
// stored alongside the record for fast exact-duplicate hinting ahead of
// the more expensive cosine-similarity dedup check.
func ContentHash(title, detail string) string {
	h := fnv.New32a()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(detail))
	return hex.EncodeToString(h.Sum(nil))
}
