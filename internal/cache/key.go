package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Rrens/bi-assistant/internal/domain"
)

// GenerateKey derives the cache key for a question asked by persona with
// optional extra parameters. The question is trimmed and lower-cased, the
// parameters are sorted, and the whole tuple is hashed with SHA-256. Every
// field is length-prefixed before hashing, so no choice of parameter values
// can reproduce the encoding of a different parameter set.
//
// Keys are structured as "<persona>:<hex digest>" so that Invalidate can drop
// every answer cached for one persona (see KeyPrefix).
func GenerateKey(query string, persona domain.Persona, params map[string]string) string {
	h := sha256.New()
	writeField(h, strings.ToLower(strings.TrimSpace(query)))
	writeField(h, string(persona))

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(h, "%d;", len(names))
	for _, name := range names {
		writeField(h, name)
		writeField(h, params[name])
	}

	return KeyPrefix(persona) + hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	fmt.Fprintf(w, "%d:%s", len(s), s)
}

// KeyPrefix returns the prefix shared by every key generated for persona
func KeyPrefix(persona domain.Persona) string {
	return string(persona) + ":"
}
