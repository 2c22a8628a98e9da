package rewrite

import (
	"regexp"
	"strings"
)

// StripPublicPath removes basePath where it directly follows "(" or "=" (and
// an optional quote). Once assets live on the CDN, a leftover base path would
// be prepended to already absolute URLs.
func StripPublicPath(content, basePath string) string {
	re := publicPathPattern(basePath)
	if re == nil {
		return content
	}
	return re.ReplaceAllString(content, "${1}${2}")
}

func publicPathPattern(basePath string) *regexp.Regexp {
	if basePath == "" {
		return nil
	}

	segments := strings.Split(basePath, Separator)
	for i, seg := range segments {
		segments[i] = regexp.QuoteMeta(seg)
	}
	// leading and trailing separators survive as empty segments
	expr := strings.Join(segments, `\`+Separator)

	if strings.HasSuffix(basePath, Separator) {
		// do not eat the first slash of a //host/path URL
		expr += `([^/])`
	}

	return regexp.MustCompile(`([(=]['"]?)` + expr)
}
