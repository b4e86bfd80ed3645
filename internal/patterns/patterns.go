// Package patterns loads blacklist/whitelist files into compiled regular
// expression sets.
package patterns

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ErrInvalidPattern is returned (wrapped) when a pattern file line does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// Set is an immutable, ordered collection of compiled patterns.
// The zero value is an empty set that matches nothing.
type Set struct {
	exprs []*regexp.Regexp
}

// Compile builds a Set from raw pattern strings, preserving order.
func Compile(sources ...string) (Set, error) {
	exprs := make([]*regexp.Regexp, 0, len(sources))
	for _, src := range sources {
		re, err := regexp.Compile(src)
		if err != nil {
			return Set{}, fmt.Errorf("%w %q: %v", ErrInvalidPattern, src, err)
		}
		exprs = append(exprs, re)
	}
	return Set{exprs: exprs}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// package-level fixtures.
func MustCompile(sources ...string) Set {
	s, err := Compile(sources...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of patterns in the set.
func (s Set) Len() int {
	return len(s.exprs)
}

// Sources returns the original pattern strings in load order.
func (s Set) Sources() []string {
	out := make([]string, len(s.exprs))
	for i, re := range s.exprs {
		out[i] = re.String()
	}
	return out
}

// MatchString reports whether any pattern matches anywhere in title.
func (s Set) MatchString(title string) bool {
	for _, re := range s.exprs {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// Load reads a pattern file: one regex per line, blank lines and lines
// starting with '#' ignored. A missing file or a line that fails to compile
// is an error.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("failed to read pattern file %s: %w", path, err)
	}

	var exprs []*regexp.Regexp
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		re, err := regexp.Compile(line)
		if err != nil {
			return Set{}, fmt.Errorf("%s:%d: %w %q: %v", path, lineNo, ErrInvalidPattern, line, err)
		}
		exprs = append(exprs, re)
	}
	if err := scanner.Err(); err != nil {
		return Set{}, fmt.Errorf("failed to scan pattern file %s: %w", path, err)
	}

	return Set{exprs: exprs}, nil
}

// LoadPair loads the blacklist and whitelist files together.
func LoadPair(blacklistPath, whitelistPath string) (blacklist, whitelist Set, err error) {
	blacklist, err = Load(blacklistPath)
	if err != nil {
		return Set{}, Set{}, fmt.Errorf("blacklist: %w", err)
	}
	whitelist, err = Load(whitelistPath)
	if err != nil {
		return Set{}, Set{}, fmt.Errorf("whitelist: %w", err)
	}
	return blacklist, whitelist, nil
}
