package rewrite

import (
	"sort"
	"strings"

	"github.com/toastate/toastcdn/internal/tlogger"
)

// Pair associates a build output file with the URL it was uploaded to.
type Pair struct {
	Local  string
	Remote string
}

// PairsFromMap turns an upload result into pairs ordered from the most
// specific local path to the least specific one, ties broken lexically.
// Rewriting applies pairs in order, so the order has to be deterministic.
func PairsFromMap(m map[string]string) []Pair {
	pairs := make([]Pair, 0, len(m))
	for local, remote := range m {
		pairs = append(pairs, Pair{Local: local, Remote: remote})
	}
	SortPairs(pairs)
	return pairs
}

// SortPairs orders pairs in place, see PairsFromMap.
func SortPairs(pairs []Pair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := NormalizePath(pairs[i].Local), NormalizePath(pairs[j].Local)
		sa, sb := strings.Count(a, Separator), strings.Count(b, Separator)
		if sa != sb {
			return sa > sb
		}
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
}

// Rewrite replaces every reference to each pair's local path with its remote
// URL, keeping the context marker in front of the reference.
func Rewrite(content string, pairs []Pair) string {
	return NewPatterns().Rewrite(content, pairs)
}

// Rewrite is the cached variant of the package level Rewrite.
func (p *Patterns) Rewrite(content string, pairs []Pair) string {
	for _, pair := range pairs {
		re, err := p.Get(pair.Local)
		if err != nil {
			tlogger.Warn("rewrite", "content", "msg", "skipping pair", "local", pair.Local, "err", err)
			continue
		}
		content = re.ReplaceAllString(content, "${1}"+strings.ReplaceAll(pair.Remote, "$", "$$"))
	}
	return content
}
