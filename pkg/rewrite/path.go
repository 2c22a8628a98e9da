package rewrite

import (
	"path"
	"regexp"
	"strings"
	"sync"
)

// Separator is the canonical separator used in every pattern.
const Separator = "/"

// contextMarker must precede a reference: src="x", url(x), a = "x", srcset="x 1x, y 2x"
const contextMarker = `([(=+,\n\t]\s*['"]?)`

// NormalizePath converts p to forward slashes and cleans it.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, Separator)
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, Separator) && cleaned != Separator {
		// keep the trailing separator so BuildPattern can reject it
		cleaned += Separator
	}
	return cleaned
}

// BuildPattern returns a pattern matching references to localPath preceded by
// a context marker. Leading segments are optional so shorter relative
// references still match, the last segment is required.
func BuildPattern(localPath string) (*regexp.Regexp, error) {
	if localPath == "" {
		return nil, &InvalidPathError{Path: localPath, Reason: "empty path"}
	}

	segments := strings.Split(localPath, Separator)
	last := len(segments) - 1
	if segments[last] == "" {
		return nil, &InvalidPathError{Path: localPath, Reason: "empty last segment"}
	}

	parts := make([]string, len(segments))
	for i, seg := range segments {
		seg = regexp.QuoteMeta(seg)
		if i == last {
			parts[i] = seg
		} else {
			parts[i] = `\.*(` + seg + `)?`
		}
	}

	return regexp.Compile(contextMarker + strings.Join(parts, `\`+Separator+`?`))
}

// Patterns caches compiled patterns per normalized local path. One instance
// is meant to live for a single rewriting pass; it is safe for concurrent use.
type Patterns struct {
	mu sync.RWMutex
	m  map[string]*regexp.Regexp
}

func NewPatterns() *Patterns {
	return &Patterns{m: make(map[string]*regexp.Regexp)}
}

// Get returns the pattern for localPath, which is normalized first.
func (p *Patterns) Get(localPath string) (*regexp.Regexp, error) {
	localPath = NormalizePath(localPath)

	p.mu.RLock()
	re, ok := p.m[localPath]
	p.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := BuildPattern(localPath)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.m[localPath] = re
	p.mu.Unlock()
	return re, nil
}

// Len returns the number of compiled patterns.
func (p *Patterns) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}
