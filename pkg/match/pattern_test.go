package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data/2024/**", "data/2024/**"},
		{`data\2024\**`, "data/2024/**"},
		{`data/file\*.txt`, `data/file\*.txt`},
		{`data\\backup`, `data\\backup`},
		{`trailing\`, "trailing/"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePattern(tt.in))
		})
	}
}

func TestDerivePrefix(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"data/2024/**/*.parquet", "data/2024/"},
		{"*.json", ""},
		{"logs/app-{a,b}/*.log", "logs/"},
		{"exact/path/file.txt", "exact/path/file.txt"},
		{"data/[0-9]*/*.csv", "data/"},
		{"data/2024-*", "data/"},
		{`data/file\*.txt`, "data/file*.txt"},
		{`data/\[backup\]/*.log`, "data/[backup]/"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePrefix(tt.pattern))
		})
	}
}

func TestCommonPrefix(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     string
	}{
		{"none", nil, ""},
		{"single", []string{"data/2024/**"}, "data/2024/"},
		{"siblings", []string{"data/2024/**", "data/2025/**"}, "data/"},
		{"shared partial segment", []string{"data/2024/**", "data/2025-x/**"}, "data/"},
		{"one unanchored", []string{"data/**", "**/*.json"}, ""},
		{"exact keys", []string{"docs/a.pdf", "docs/b.pdf"}, "docs/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommonPrefix(tt.patterns))
		})
	}
}

func TestIsGlobPattern(t *testing.T) {
	assert.True(t, IsGlobPattern("data/*.csv"))
	assert.True(t, IsGlobPattern("data/{a,b}"))
	assert.False(t, IsGlobPattern("data/file.csv"))
	assert.False(t, IsGlobPattern(`data/file\*.csv`))
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"path/to/file.txt", false},
		{".hidden/file.txt", true},
		{"path/.hidden/file.txt", true},
		{"path/to/.gitignore", true},
		{"path/to/file.txt.", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHidden(tt.key))
		})
	}
}
