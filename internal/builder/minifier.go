package builder

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

// Scripts are never minified: chunk loading code is matched on the bundler's
// unminified output.

type FileWriter interface {
	Writer(string, io.WriteCloser) io.WriteCloser
	Enabled() bool
}

type TDMinifier struct {
	Minifier *minify.M
}

func NewTDMinifier() *TDMinifier {
	minifier := minify.New()
	minifier.AddFunc("text/css", css.Minify)
	minifier.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return &TDMinifier{
		Minifier: minifier,
	}
}

func (m *TDMinifier) Writer(mediatype string, out io.WriteCloser) io.WriteCloser {
	if mediatype == "" {
		return out
	}
	return &closingWriter{WriteCloser: m.Minifier.Writer(mediatype, out), out: out}
}

func (m *TDMinifier) Enabled() bool {
	return true
}

// closingWriter flushes the minifier then closes the file.
type closingWriter struct {
	io.WriteCloser
	out io.Closer
}

func (w *closingWriter) Close() error {
	err := w.WriteCloser.Close()
	if cerr := w.out.Close(); err == nil {
		err = cerr
	}
	return err
}

type NOOPMinifier struct {
}

func (m *NOOPMinifier) Writer(mediatype string, out io.WriteCloser) io.WriteCloser {
	return out
}

func (m *NOOPMinifier) Enabled() bool {
	return false
}

// mediatype returns the minifier media type of a rewritten file, empty when
// it is not minified.
func mediatype(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".css":
		return "text/css"
	case ".html", ".htm":
		return "text/html"
	}
	return ""
}
