// Package glob wraps the gobwas/glob matcher behind a small interface so the
// filesystem packages don't depend on the library directly.
package glob

import (
	"strings"

	"github.com/gobwas/glob"
)

type Glob interface {
	Match(name string) bool
}

type globber struct {
	pattern string
	glob    glob.Glob
}

func Compile(pattern string, separators ...rune) (Glob, error) {
	g, err := glob.Compile(pattern, separators...)
	if err != nil {
		return nil, err
	}

	return &globber{pattern: pattern, glob: g}, nil
}

func MustCompile(pattern string, separators ...rune) Glob {
	g := glob.MustCompile(pattern, separators...)

	return &globber{pattern: pattern, glob: g}
}

func (g *globber) Match(name string) bool {
	return g.glob.Match(name)
}

// IsPattern reports whether the string contains glob metacharacters. A plain
// name can be matched with a string comparison instead.
func IsPattern(pattern string) bool {
	return strings.IndexAny(pattern, "*?[{") != -1
}

// Match returns whether the name matches the glob pattern, also considering
// optional separators. An error is only returned if the pattern is invalid.
func Match(pattern, name string, separators ...rune) (bool, error) {
	g, err := Compile(pattern, separators...)
	if err != nil {
		return false, err
	}

	return g.Match(name), nil
}
