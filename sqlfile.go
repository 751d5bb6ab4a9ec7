package ygggo_gamedb

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"
)

// HashContent returns the uppercase SHA1 of content with carriage returns
// removed, so a file hashes the same on every platform.
func HashContent(content []byte) string {
	normalized := strings.ReplaceAll(string(content), "\r", "")
	sum := sha1.Sum([]byte(normalized))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// SplitStatements splits a SQL script on semicolons outside quoted text and
// comments. Pieces with no executable text are dropped.
func SplitStatements(script string) []string {
	var (
		out     []string
		start   int
		hasCode bool
	)
	flush := func(end int) {
		if hasCode {
			if stmt := strings.TrimSpace(script[start:end]); stmt != "" {
				out = append(out, stmt)
			}
		}
		start = end + 1
		hasCode = false
	}
	scanSQL(script, func(i int, c byte, inCode bool) {
		if !inCode {
			return
		}
		if c == ';' {
			flush(i)
			return
		}
		if !unicode.IsSpace(rune(c)) {
			hasCode = true
		}
	})
	if start < len(script) {
		flush(len(script))
	}
	return out
}
