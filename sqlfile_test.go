package ygggo_gamedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashContent(t *testing.T) {
	unix := HashContent([]byte("CREATE TABLE a (id INT);\nINSERT INTO a VALUES (1);\n"))
	windows := HashContent([]byte("CREATE TABLE a (id INT);\r\nINSERT INTO a VALUES (1);\r\n"))

	assert.Equal(t, unix, windows)
	assert.Len(t, unix, 40)
	assert.Regexp(t, "^[0-9A-F]{40}$", unix)
	assert.NotEqual(t, unix, HashContent([]byte("CREATE TABLE a (id INT);\n")))
	assert.Equal(t, "DA39A3EE5E6B4B0D3255BFEF95601890AFD80709", HashContent(nil))
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "simple",
			script: "CREATE TABLE a (id INT);\nINSERT INTO a VALUES (1);",
			want:   []string{"CREATE TABLE a (id INT)", "INSERT INTO a VALUES (1)"},
		},
		{
			name:   "no trailing semicolon",
			script: "DELETE FROM a;\nDELETE FROM b",
			want:   []string{"DELETE FROM a", "DELETE FROM b"},
		},
		{
			name:   "semicolon in quotes",
			script: "INSERT INTO motd VALUES ('hello; world');\nINSERT INTO motd VALUES (\"a;b\");",
			want:   []string{"INSERT INTO motd VALUES ('hello; world')", "INSERT INTO motd VALUES (\"a;b\")"},
		},
		{
			name:   "comment only pieces dropped",
			script: "-- header; with a semicolon\n;\n/* block; */\nSELECT 1;\n-- trailing",
			want:   []string{"/* block; */\nSELECT 1"},
		},
		{
			name:   "empty statements",
			script: ";;\n  ;",
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.script))
		})
	}
}
