package rewrite

import (
	"errors"
	"regexp"
	"strings"
)

var (
	cssChunksRegexp     = regexp.MustCompile(`var\s+cssChunks\s*=\s*([^;\n]+);?`)
	cssHrefRegexp       = regexp.MustCompile(`var\s+href\s*=[^\n]+?chunkId[^\n;]+;?`)
	miniCssHelperRegexp = regexp.MustCompile(`__webpack_require__\.miniCssF\s*=`)
)

const runtimeObject = "__webpack_require__"

// StyleHref is the stylesheet href computed by the runtime for one chunk.
type StyleHref struct {
	ChunkID string
	// Href has a single leading "./" removed.
	Href    string
	RawHref string
}

// RewriteAsyncStyles replaces the runtime statement computing the href of an
// asynchronously loaded stylesheet by a lookup into a literal map of CDN URLs.
// styles are the uploaded stylesheet pairs, in the order they are tried.
// Chunks without an uploaded stylesheet keep basePath + their raw href.
//
// On an evaluation failure content is returned as is together with a
// *MatchEvaluationError.
func RewriteAsyncStyles(content string, styles []Pair, basePath string) (string, error) {
	m := cssChunksRegexp.FindStringSubmatch(content)
	if m == nil {
		return content, nil
	}
	loc := cssHrefRegexp.FindStringIndex(content)
	if loc == nil {
		return content, nil
	}
	stmt := content[loc[0]:loc[1]]

	hrefs, err := EvalStyleHrefs(m[1], stmt, helperSource(content, stmt))
	if err != nil {
		return content, &MatchEvaluationError{Fragment: stmt, Err: err}
	}

	urls := make(ChunkMap, len(hrefs))
	for _, h := range hrefs {
		if remote, ok := matchStyle(styles, h.Href); ok {
			urls[h.ChunkID] = remote
		} else {
			urls[h.ChunkID] = basePath + h.RawHref
		}
	}
	if len(urls) == 0 {
		return content, nil
	}

	literal, err := urls.JSON()
	if err != nil {
		return content, &MatchEvaluationError{Fragment: stmt, Err: err}
	}
	return content[:loc[0]] + "var href = " + literal + "[chunkId];" + content[loc[1]:], nil
}

// helperSource returns the source following the miniCssF assignment when the
// href statement needs the runtime object.
func helperSource(content, stmt string) string {
	if !strings.Contains(stmt, runtimeObject) {
		return ""
	}
	loc := miniCssHelperRegexp.FindStringIndex(content)
	if loc == nil {
		return ""
	}
	return content[loc[1]:]
}

// EvalStyleHrefs evaluates the href statement stmt once per key of the chunk
// map literal mapSrc, with chunkId bound to the key. helperSrc, when not
// empty, starts with the function installed as __webpack_require__.miniCssF.
func EvalStyleHrefs(mapSrc, stmt, helperSrc string) ([]StyleHref, error) {
	global := newScope(nil)
	if strings.Contains(stmt, runtimeObject) {
		req := newObject()
		if helperSrc != "" {
			fn, err := parseLeadingExpression(helperSrc)
			if err != nil {
				return nil, err
			}
			v, err := fn.eval(global)
			if err != nil {
				return nil, err
			}
			if _, ok := v.(*function); !ok {
				return nil, errors.New("miniCssF is not a function")
			}
			req.set("miniCssF", v)
		}
		global.vars[runtimeObject] = req
	}

	chunks, err := evalExpression(mapSrc, global)
	if err != nil {
		return nil, err
	}
	obj, ok := chunks.(*object)
	if !ok {
		return nil, errors.New("cssChunks is not an object literal")
	}
	global.vars["cssChunks"] = obj

	expr, err := parseVarStatement(stmt, "href")
	if err != nil {
		return nil, err
	}

	keys := obj.ownKeys()
	out := make([]StyleHref, 0, len(keys))
	for _, key := range keys {
		sc := newScope(global)
		sc.vars["chunkId"] = key
		v, err := expr.eval(sc)
		if err != nil {
			return nil, err
		}
		raw := toString(v)
		out = append(out, StyleHref{
			ChunkID: key,
			Href:    strings.TrimPrefix(raw, "./"),
			RawHref: raw,
		})
	}
	return out, nil
}

// matchStyle prefers a pair whose local path ends with /href and falls back
// to the first one containing href.
func matchStyle(styles []Pair, href string) (string, bool) {
	if href == "" {
		return "", false
	}
	for _, s := range styles {
		local := NormalizePath(s.Local)
		if local == href || strings.HasSuffix(local, Separator+href) {
			return s.Remote, true
		}
	}
	for _, s := range styles {
		if strings.Contains(NormalizePath(s.Local), href) {
			return s.Remote, true
		}
	}
	return "", false
}
