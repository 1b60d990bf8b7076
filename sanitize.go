package strata

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxLineSize bounds a single Runner input line (command plus payload).
	DefaultMaxLineSize = 64 * 1024
	// EnvMaxLineSize overrides DefaultMaxLineSize.
	EnvMaxLineSize = "STRATA_MAX_LINE_SIZE"
)

var (
	ErrLineTooLarge = errors.New("input line exceeds maximum allowed size")
	ErrInvalidUTF8  = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeLine rejects oversized or invalid UTF-8 input and strips control
// characters other than tab, newline and carriage return.
// Oversized lines are rejected rather than truncated so a payload is never half-applied.
func SanitizeLine(line string) (string, error) {
	if limit := maxLineSize(); len(line) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrLineTooLarge, len(line), limit)
	}
	if !utf8.ValidString(line) {
		return "", ErrInvalidUTF8
	}

	if strings.IndexFunc(line, isUnsafeControl) < 0 {
		return line, nil
	}
	return strings.Map(func(r rune) rune {
		if isUnsafeControl(r) {
			return -1
		}
		return r
	}, line), nil
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxLineSize() int {
	if val := os.Getenv(EnvMaxLineSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxLineSize
}
