// Package match filters listing results by doublestar globs, size and
// modification time.
package match

import (
	"strings"
)

// Glob metacharacters that can be escaped with backslash in patterns.
const globEscapable = `*?[]{}\`

// NormalizePattern converts a user-provided glob to canonical form.
// Unescaped backslashes become forward slashes; escaped metacharacters
// (\*, \?, \[ ...) are kept.
//
//	"data\2024\**"    → "data/2024/**"
//	"data/file\*.txt" → "data/file\*.txt"
func NormalizePattern(pattern string) string {
	if !strings.ContainsRune(pattern, '\\') {
		return pattern
	}

	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(pattern) && strings.IndexByte(globEscapable, pattern[i+1]) >= 0 {
			b.WriteByte(c)
			b.WriteByte(pattern[i+1])
			i++
			continue
		}
		b.WriteByte('/')
	}
	return b.String()
}

// DerivePrefix returns the static directory prefix of a glob: everything
// before the first unescaped metacharacter, cut back to the last "/".
// Escapes are removed from the result since keys are literal.
//
//	"data/2024/**/*.parquet" → "data/2024/"
//	"*.json"                 → ""
//	"logs/app-{a,b}/*.log"   → "logs/"
//	"exact/path/file.txt"    → "exact/path/file.txt"
func DerivePrefix(pattern string) string {
	pattern = NormalizePattern(pattern)

	meta := firstMeta(pattern)
	if meta < 0 {
		return unescape(pattern)
	}
	slash := strings.LastIndexByte(pattern[:meta], '/')
	if slash < 0 {
		return ""
	}
	return unescape(pattern[:slash+1])
}

// CommonPrefix returns the longest directory prefix shared by every pattern.
func CommonPrefix(patterns []string) string {
	if len(patterns) == 0 {
		return ""
	}

	common := DerivePrefix(patterns[0])
	for _, p := range patterns[1:] {
		prefix := DerivePrefix(p)
		n := 0
		for n < len(common) && n < len(prefix) && common[n] == prefix[n] {
			n++
		}
		common = common[:n]
	}
	if i := strings.LastIndexByte(common, '/'); i >= 0 {
		return common[:i+1]
	}
	return ""
}

// IsGlobPattern reports whether pattern has an unescaped metacharacter.
func IsGlobPattern(pattern string) bool {
	return firstMeta(NormalizePattern(pattern)) >= 0
}

// IsHidden reports whether any path segment starts with a dot.
func IsHidden(key string) bool {
	for _, seg := range strings.Split(key, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func firstMeta(pattern string) int {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '*', '?', '[', '{':
			return i
		}
	}
	return -1
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte(globEscapable, s[i+1]) >= 0 {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
