package rewrite

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/toastate/toastcdn/internal/helpers"
)

// ChunkMap maps a chunk id, in its string form, to a filename before upload
// and to a CDN URL after.
type ChunkMap map[string]string

// Merge adds the entries of other. Entries are never removed and an existing
// value is never replaced by an empty one.
func (m ChunkMap) Merge(other ChunkMap) {
	for id, v := range other {
		if v == "" {
			if _, ok := m[id]; ok {
				continue
			}
		}
		m[id] = v
	}
}

// Keys returns the ids in the order a JS engine enumerates object keys:
// array indexes ascending, then the remaining keys.
func (m ChunkMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortObjectKeys(keys)
	return keys
}

// JSON serializes the map the way the bundler runtime would have written it.
func (m ChunkMap) JSON() (string, error) {
	b, err := helpers.MarshalOrderedStringMap(m.Keys(), m)
	return string(b), err
}

func sortObjectKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ai, aok := arrayIndex(keys[i])
		bi, bok := arrayIndex(keys[j])
		switch {
		case aok && bok:
			return ai < bi
		case aok != bok:
			return aok
		}
		return keys[i] < keys[j]
	})
}

func arrayIndex(k string) (uint64, bool) {
	if k == "" || (len(k) > 1 && k[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(k, 10, 32)
	if err != nil || n == 1<<32-1 {
		return 0, false
	}
	return n, true
}

// Variant identifies a generation of the bundler's chunk loading code.
type Variant int

const (
	VariantNone Variant = iota
	// VariantIndexed: __webpack_require__.p + ... + map[chunkId] + ".js"
	VariantIndexed
	// VariantLoose: __webpack_require__.p and chunkId in one statement ending with ".js"
	VariantLoose
	// VariantCall: __webpack_require__.p + __webpack_require__.u(chunkId)
	VariantCall
)

func (v Variant) String() string {
	switch v {
	case VariantIndexed:
		return "v1"
	case VariantLoose:
		return "v2"
	case VariantCall:
		return "v3"
	}
	return "none"
}

var (
	chunkIndexedRegexp = regexp.MustCompile(`__webpack_require__\.p\s?\+[^\[]+\[(\S+)\][^\n]+?\.js['"];?`)
	chunkLooseRegexp   = regexp.MustCompile(`__webpack_require__\.p\s?\+[^;]*?\b(chunkId)\b[^;]*?\.js['"];?`)
	chunkCallRegexp    = regexp.MustCompile(`__webpack_require__\.p\s?\+\s?__webpack_require__\.u\(([^()]+)\);?`)

	publicPathAssignRegexp = regexp.MustCompile(`__webpack_require__\.p\s?=\s?([^;\n]+);?`)
)

// detection order matters: the first matching variant wins
var chunkVariants = []struct {
	variant Variant
	re      *regexp.Regexp
}{
	{VariantIndexed, chunkIndexedRegexp},
	{VariantLoose, chunkLooseRegexp},
	{VariantCall, chunkCallRegexp},
}

// DetectChunkVariant reports which chunk loading syntax content uses.
func DetectChunkVariant(content string) Variant {
	for _, cv := range chunkVariants {
		if cv.re.MatchString(content) {
			return cv.variant
		}
	}
	return VariantNone
}

// IsEntryChunk reports whether content carries chunk loading runtime code,
// which is the case for entry and common chunks.
func IsEntryChunk(content string) bool {
	return DetectChunkVariant(content) != VariantNone
}

func variantRegexp(v Variant) *regexp.Regexp {
	for _, cv := range chunkVariants {
		if cv.variant == v {
			return cv.re
		}
	}
	return nil
}

// RewriteChunkMap replaces each chunk loading expression of the given variant
// by a lookup into urls indexed with the captured id expression.
func RewriteChunkMap(content string, v Variant, urls ChunkMap) (string, error) {
	re := variantRegexp(v)
	if re == nil || len(urls) == 0 {
		return content, nil
	}

	literal, err := urls.JSON()
	if err != nil {
		return content, err
	}

	return re.ReplaceAllStringFunc(content, func(match string) string {
		sub := re.FindStringSubmatch(match)
		if len(sub) < 2 || sub[1] == "" {
			return match
		}
		return literal + "[" + sub[1] + "];"
	}), nil
}

// ZeroPublicPath rewrites the runtime public path assignment to an empty
// string so CDN URLs are not prefixed again.
func ZeroPublicPath(content string) string {
	return publicPathAssignRegexp.ReplaceAllLiteralString(content, `__webpack_require__.p = "";`)
}

// UpdateScriptSrc rewrites the chunk loading code of a script with urls and
// neutralizes its public path. An empty urls leaves content untouched.
func UpdateScriptSrc(content string, urls ChunkMap) (string, error) {
	if len(urls) == 0 {
		return content, nil
	}

	out, err := RewriteChunkMap(content, DetectChunkVariant(content), urls)
	if err != nil {
		return content, err
	}
	return ZeroPublicPath(out), nil
}
