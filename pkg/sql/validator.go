// Package sql parses SQL statements into the table and column references the
// index advisor works from.
package sql

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-advisor/pkg/apperrors"
)

var (
	// ErrMultipleStatements indicates the query text holds more than one statement.
	ErrMultipleStatements = fmt.Errorf("%w: multiple SQL statements; only single statements can be analyzed", apperrors.ErrParse)

	// ErrEmptyQuery indicates the query text is blank.
	ErrEmptyQuery = fmt.Errorf("%w: empty query", apperrors.ErrParse)
)

// NormalizeStatement trims the query, strips one trailing semicolon (and any
// comments after it) and rejects text that still holds a statement separator
// outside quotes and comments.
func NormalizeStatement(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}

	if pos := separatorIndex(query); pos >= 0 {
		if !onlyComments(query[pos+1:]) {
			return "", ErrMultipleStatements
		}
		query = query[:pos]
	}

	normalized := strings.TrimRight(query, " \t\n\r")
	if normalized == "" {
		return "", ErrEmptyQuery
	}
	return normalized, nil
}

// separatorIndex returns the byte offset of the first ';' outside '...',
// "...", `...` and comments, or -1. Backslash and doubled-quote escapes both
// keep the scanner inside a literal.
func separatorIndex(query string) int {
	var quote byte

	for i := 0; i < len(query); i++ {
		ch := query[i]
		if quote != 0 {
			switch {
			case ch == '\\' && quote != '`':
				i++
			case ch == quote:
				// A doubled quote exits here and re-enters on the next byte.
				quote = 0
			}
			continue
		}

		switch {
		case ch == ';':
			return i
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case isCommentStart(query, i):
			i = commentEnd(query, i) - 1
		}
	}
	return -1
}

// isCommentStart matches "#", "/*" and "-- " (MySQL needs whitespace after the
// dashes; "a--1" is arithmetic).
func isCommentStart(query string, i int) bool {
	switch query[i] {
	case '#':
		return true
	case '/':
		return i+1 < len(query) && query[i+1] == '*'
	case '-':
		if i+1 >= len(query) || query[i+1] != '-' {
			return false
		}
		return i+2 == len(query) || strings.ContainsRune(" \t\n\r", rune(query[i+2]))
	}
	return false
}

// commentEnd returns the offset just past the comment starting at i.
func commentEnd(query string, i int) int {
	if query[i] == '/' {
		if end := strings.Index(query[i+2:], "*/"); end >= 0 {
			return i + 2 + end + 2
		}
		return len(query)
	}
	if end := strings.IndexByte(query[i:], '\n'); end >= 0 {
		return i + end + 1
	}
	return len(query)
}

func onlyComments(rest string) bool {
	for {
		rest = strings.TrimLeft(rest, " \t\n\r")
		if rest == "" {
			return true
		}
		if !isCommentStart(rest, 0) {
			return false
		}
		rest = rest[commentEnd(rest, 0):]
	}
}
