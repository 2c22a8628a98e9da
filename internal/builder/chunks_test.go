package builder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toastate/toastcdn/internal/manifest"
	"github.com/toastate/toastcdn/pkg/rewrite"
)

func TestResolveChunkFilenames(t *testing.T) {
	chunks := []manifest.Chunk{
		{ID: "0", RenderedHash: "0123456789", ContentHash: "abcdefabcd"},
		{ID: "vendors", Name: "vendors", RenderedHash: "9876543210"},
	}

	files, err := ResolveChunkFilenames(chunks, "js/[name].[chunkhash:4].[contenthash:6].[id].js")
	require.NoError(t, err)
	assert.Equal(t, rewrite.ChunkMap{
		"0":       "js/0.0123.abcdef.0.js",
		"vendors": "js/vendors.9876.987654.vendors.js",
	}, files)

	files, err = ResolveChunkFilenames(chunks, "[id].[chunkhash].js")
	require.NoError(t, err)
	assert.Equal(t, "0.0123456789.js", files["0"])

	files, err = ResolveChunkFilenames(chunks, "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestResolveChunkFilenamesRejectsHash(t *testing.T) {
	for _, tpl := range []string{"[name].[hash].js", "[id].[hash:8].js"} {
		_, err := ResolveChunkFilenames(nil, tpl)
		require.Error(t, err)

		var tplErr *PathTemplateError
		require.True(t, errors.As(err, &tplErr), tpl)
		assert.Equal(t, tpl, tplErr.Template)
	}
}

func TestIDForChunk(t *testing.T) {
	files := rewrite.ChunkMap{
		"0":  "0.js",
		"10": "10.js",
		"a":  "js/a.js",
		"b":  "a.js",
	}

	cases := map[string]string{
		"/dist/0.js":    "0",
		"/dist/10.js":   "10",
		"/dist/js/a.js": "a",
		"/dist/a.js":    "b",
		`C:\dist\0.js`:  "0",
		"0.js":          "0",
	}
	for local, expected := range cases {
		id, ok := IDForChunk(local, files)
		assert.True(t, ok, local)
		assert.Equal(t, expected, id, local)
	}

	_, ok := IDForChunk("/dist/main.js", files)
	assert.False(t, ok)
	_, ok = IDForChunk("/dist/x0.js", files)
	assert.False(t, ok)
}
