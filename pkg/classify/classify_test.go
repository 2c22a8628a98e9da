package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	c := New()

	cases := map[string]Kind{
		"/dist/img/logo.png":     KindImage,
		"/dist/img/logo.JPG":     KindOther,
		"/dist/favicon.ico":      KindImage,
		"/dist/fonts/a.woff2":    KindFont,
		"/dist/fonts/icons.svg":  KindFont,
		"/dist/app.css":          KindStylesheet,
		"/dist/app.js":           KindScript,
		"/dist/app.js.map":       KindOther,
		"/src/index.html":        KindTemplate,
		`C:\dist\index.html`:     KindTemplate,
		"/dist/README":           KindOther,
		"/dist/template.ejs":     KindOther,
		"/dist/archive.tar.gz":   KindOther,
		"/dist/.hidden/file.css": KindStylesheet,
	}
	for p, expected := range cases {
		assert.Equal(t, expected, c.Kind(p), p)
	}

	assert.Equal(t, KindTemplate, New("ejs", ".tpl").Kind("/src/a.tpl"))
	assert.Equal(t, KindOther, New("ejs").Kind("/src/a.html"))
	assert.Equal(t, "stylesheet", KindStylesheet.String())
}

func TestClassify(t *testing.T) {
	assets := []Asset{
		{Name: "a.png", Path: "/d/a.png"},
		{Name: "f.woff", Path: "/d/f.woff"},
		{Name: "b.gif", Path: "/d/b.gif"},
		{Name: "app.css", Path: "/d/app.css"},
		{Name: "app.js", Path: "/d/app.js"},
		{Name: "index.html", Path: "/d/index.html"},
		{Name: "app.js.map", Path: "/d/app.js.map"},
	}

	classes := New().Classify(assets)
	assert.Equal(t, []string{"/d/a.png", "/d/b.gif", "/d/f.woff"}, Paths(classes.Media()))
	assert.Equal(t, []string{"/d/app.css"}, Paths(classes.Stylesheets))
	assert.Equal(t, []string{"/d/app.js"}, Paths(classes.Scripts))
	assert.Equal(t, []string{"/d/index.html"}, Paths(classes.Templates))
	assert.Equal(t, []string{"/d/app.js.map"}, Paths(classes.Other))
}

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0644))
	}
}

func TestWalkerAssets(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"index.html",
		"js/app.js",
		"js/app.js.map",
		"node_modules/lib/index.js",
		".idea/workspace.xml",
		"css/.gitignore",
		"drafts/old.html",
	)

	w, err := NewWalker("drafts", "*.map")
	require.NoError(t, err)

	assets, err := w.Assets(root, filepath.Join(root, "js"))
	require.NoError(t, err)

	var names []string
	for _, a := range assets {
		names = append(names, a.Name)
		assert.True(t, filepath.IsAbs(filepath.FromSlash(a.Path)), a.Path)
	}
	assert.Equal(t, []string{"index.html", "js/app.js"}, names)
}

func TestWalkerInvalidPattern(t *testing.T) {
	_, err := NewWalker("[")
	assert.Error(t, err)
}

func TestWalkerMissingRoot(t *testing.T) {
	w, err := NewWalker()
	require.NoError(t, err)

	_, err = w.Assets(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
