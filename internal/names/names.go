// Package names canonicalizes region names into join keys.
package names

import (
	"strings"
	"unicode"

	"sipeta-bknd/internal/models"

	"golang.org/x/text/unicode/norm"
)

// Normalize strips diacritics, lowercases and collapses whitespace.
// "Banda  Aceh", "BANDA ACEH" and "banda aceh" all yield "banda aceh".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Canon applies Normalize followed by an explicit per-level alias table.
// The zero value has no aliases.
type Canon struct {
	aliases map[models.Level]map[string]string
}

// NewCanon builds a Canon from raw alias pairs (variant -> canonical). Both
// sides are normalized, so the table can be written in source casing.
func NewCanon(aliases map[models.Level]map[string]string) *Canon {
	c := &Canon{aliases: make(map[models.Level]map[string]string, len(aliases))}
	for level, pairs := range aliases {
		m := make(map[string]string, len(pairs))
		for from, to := range pairs {
			m[Normalize(from)] = Normalize(to)
		}
		c.aliases[level] = m
	}
	return c
}

// Key returns the join key of name at level.
func (c *Canon) Key(level models.Level, name string) string {
	k := Normalize(name)
	if c == nil {
		return k
	}
	if to, ok := c.aliases[level][k]; ok {
		return to
	}
	return k
}
