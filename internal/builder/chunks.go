package builder

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/toastate/toastcdn/internal/manifest"
	"github.com/toastate/toastcdn/pkg/rewrite"
)

var (
	hashPlaceholderRegexp        = regexp.MustCompile(`\[hash(:\d+)?\]`)
	chunkHashPlaceholderRegexp   = regexp.MustCompile(`\[chunkhash(:\d+)?\]`)
	contentHashPlaceholderRegexp = regexp.MustCompile(`\[contenthash(:\d+)?\]`)
)

// ResolveChunkFilenames returns the filename of every chunk, computed from
// the chunk filename template.
func ResolveChunkFilenames(chunks []manifest.Chunk, template string) (rewrite.ChunkMap, error) {
	if m := hashPlaceholderRegexp.FindString(template); m != "" {
		return nil, &PathTemplateError{Template: template, Placeholder: m}
	}

	out := make(rewrite.ChunkMap, len(chunks))
	if template == "" {
		return out, nil
	}

	for _, c := range chunks {
		id := string(c.ID)
		name := c.Name
		if name == "" {
			name = id
		}
		contentHash := string(c.ContentHash)
		if contentHash == "" {
			contentHash = c.RenderedHash
		}

		f := strings.ReplaceAll(template, "[name]", name)
		f = strings.ReplaceAll(f, "[id]", id)
		f = replaceHash(chunkHashPlaceholderRegexp, f, c.RenderedHash)
		f = replaceHash(contentHashPlaceholderRegexp, f, contentHash)
		out[id] = f
	}
	return out, nil
}

// replaceHash substitutes hash, truncated to the optional :n length.
func replaceHash(re *regexp.Regexp, s, hash string) string {
	return re.ReplaceAllStringFunc(s, func(match string) string {
		sub := re.FindStringSubmatch(match)
		if len(sub) < 2 || sub[1] == "" {
			return hash
		}
		n, err := strconv.Atoi(sub[1][1:])
		if err != nil || n >= len(hash) {
			return hash
		}
		return hash[:n]
	})
}

// IDForChunk returns the id of the chunk stored at local. Among the chunks
// whose filename ends local, the longest filename wins.
func IDForChunk(local string, files rewrite.ChunkMap) (string, bool) {
	local = rewrite.NormalizePath(local)

	best, bestLen := "", -1
	for _, id := range files.Keys() {
		f := rewrite.NormalizePath(files[id])
		if f == "" {
			continue
		}
		if local != f && !strings.HasSuffix(local, rewrite.Separator+strings.TrimPrefix(f, "./")) {
			continue
		}
		if len(f) > bestLen {
			best, bestLen = id, len(f)
		}
	}
	return best, bestLen >= 0
}

// isChunkFile reports whether local is the file of one of the chunks.
func isChunkFile(local string, files rewrite.ChunkMap) bool {
	_, ok := IDForChunk(local, files)
	return ok
}
