package builder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toastate/toastcdn/internal/cache"
	"github.com/toastate/toastcdn/internal/cdn"
	"github.com/toastate/toastcdn/internal/manifest"
	"github.com/toastate/toastcdn/internal/tlogger"
)

const runtimeScript = `script.src = __webpack_require__.p + "js/" + chunkId + ".chunk.js";
__webpack_require__.p = "/static/";
`

const indexTemplate = `<link href="/css/app.css" rel="stylesheet">
<script src="/js/runtime.js"></script>
<script src="/js/main.js"></script>
<img src="/img/logo.png">
`

type fixture struct {
	dir  string
	out  string
	info manifest.BuildInfo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	f := &fixture{
		dir: filepath.Join(root, "dist"),
		out: filepath.Join(root, "out"),
	}

	files := map[string]string{
		"img/logo.png":      "\x89PNG",
		"css/app.css":       `.logo{background:url(../img/logo.png)}`,
		"js/runtime.js":     runtimeScript,
		"js/1.chunk.js":     `console.log("lazy")`,
		"js/main.js":        `var logo = "/img/logo.png";`,
		"index.html":        indexTemplate,
		"fonts/icons.woff2": "wOF2",
	}

	f.info = manifest.BuildInfo{
		OutputPath:    f.dir,
		ChunkFilename: "js/[id].chunk.js",
		Chunks:        []manifest.Chunk{{ID: "1", RenderedHash: "0123456789"}},
	}
	for name, content := range files {
		p := filepath.Join(f.dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		f.info.Assets = append(f.info.Assets, manifest.Asset{Name: name, ExistsAt: filepath.ToSlash(p)})
	}
	return f
}

// write replaces name in the build, listing it in the manifest when new.
func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	p := filepath.Join(f.dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	for _, a := range f.info.Assets {
		if a.Name == name {
			return
		}
	}
	f.info.Assets = append(f.info.Assets, manifest.Asset{Name: name, ExistsAt: filepath.ToSlash(p)})
}

func (f *fixture) read(t *testing.T, root, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(b)
}

func testOptions(f *fixture) Options {
	opts := DefaultOptions()
	opts.Dist = f.out
	opts.EnableCache = false
	return opts
}

func uploadedNames(m *cdn.MockUploader) []string {
	var out []string
	for _, p := range m.Uploaded() {
		out = append(out, filepath.Base(filepath.FromSlash(p)))
	}
	return out
}

func TestBuild(t *testing.T) {
	f := newFixture(t)
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	finished := false
	opts := testOptions(f)
	opts.OnFinish = func() { finished = true }

	b := NewBuilder(&manifest.Static{Info: f.info}, up, opts)
	require.NoError(t, b.Build(context.Background()))
	assert.True(t, finished)

	// media first, the common chunk after the lazy chunk and stylesheets
	require.Len(t, up.Calls, 5)
	assert.ElementsMatch(t, []string{"icons.woff2", "logo.png"}, uploadedNames(&cdn.MockUploader{Calls: up.Calls[:1]}))
	assert.Equal(t, []string{"1.chunk.js", "app.css", "runtime.js", "main.js"}, uploadedNames(&cdn.MockUploader{Calls: up.Calls[1:]}))

	assert.Equal(t, `.logo{background:url(https://cdn.test/logo.png)}`, f.read(t, f.dir, "css/app.css"))
	assert.Equal(t, `var logo = "https://cdn.test/logo.png";`, f.read(t, f.dir, "js/main.js"))
	assert.Equal(t, "script.src = {\"1\":\"https://cdn.test/1.chunk.js\"}[chunkId];\n__webpack_require__.p = \"\";\n", f.read(t, f.dir, "js/runtime.js"))

	assert.Equal(t, `<link href="https://cdn.test/app.css" rel="stylesheet">
<script src="https://cdn.test/runtime.js"></script>
<script src="https://cdn.test/main.js"></script>
<img src="https://cdn.test/logo.png">
`, f.read(t, f.out, "index.html"))

	// the source template is left alone
	assert.Equal(t, indexTemplate, f.read(t, f.dir, "index.html"))
}

func TestBuildWithCache(t *testing.T) {
	f := newFixture(t)
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}
	mem := cache.NewMemory()

	b := NewBuilder(&manifest.Static{Info: f.info}, up, testOptions(f))
	b.SetCache(mem)
	require.NoError(t, b.Build(context.Background()))
	first := len(up.Calls)
	require.NotZero(t, first)

	require.NoError(t, os.Remove(filepath.Join(f.out, "index.html")))

	b = NewBuilder(&manifest.Static{Info: f.info}, up, testOptions(f))
	b.SetCache(mem)
	require.NoError(t, b.Build(context.Background()))

	assert.Len(t, up.Calls, first, "unchanged files are not uploaded again")
	assert.Contains(t, f.read(t, f.out, "index.html"), `<script src="https://cdn.test/main.js"></script>`)
}

func TestBuildFileCache(t *testing.T) {
	f := newFixture(t)
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	opts := testOptions(f)
	opts.EnableCache = true
	opts.CacheLocation = filepath.Join(t.TempDir(), "cache.json")
	opts.PassToCdn = map[string]string{"bucket": "assets"}

	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, up, opts).Build(context.Background()))

	c, err := cache.Open(opts.CacheLocation, opts.PassToCdn)
	require.NoError(t, err)
	assert.Equal(t, len(up.Uploaded()), c.Len())
}

func TestBuildURLHook(t *testing.T) {
	f := newFixture(t)
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	opts := testOptions(f)
	opts.URLHook = func(remote, local string) string {
		return remote + "?v=1"
	}

	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, up, opts).Build(context.Background()))
	assert.Contains(t, f.read(t, f.out, "index.html"), `<img src="https://cdn.test/logo.png?v=1">`)
	assert.Contains(t, f.read(t, f.dir, "js/runtime.js"), `{"1":"https://cdn.test/1.chunk.js?v=1"}[chunkId];`)
}

func TestBuildReplaceFnAndPublicPath(t *testing.T) {
	f := newFixture(t)
	f.info.PublicPath = "/static/"
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "css", "app.css"), []byte(`.a{background:url(/static/img/logo.png)}`), 0644))

	var locations []string
	opts := testOptions(f)
	opts.ReplaceFn = func(content, location string) string {
		if strings.HasSuffix(location, ".html") {
			locations = append(locations, location)
			return strings.ReplaceAll(content, "<img", "<img loading=\"lazy\"")
		}
		return content
	}

	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, up, opts).Build(context.Background()))
	assert.Equal(t, `.a{background:url(https://cdn.test/logo.png)}`, f.read(t, f.dir, "css/app.css"))
	assert.Contains(t, f.read(t, f.out, "index.html"), `<img loading="lazy" src="https://cdn.test/logo.png">`)
	assert.Len(t, locations, 1)
}

func TestBuildUploadError(t *testing.T) {
	f := newFixture(t)
	failure := errors.New("bucket unavailable")
	up := &cdn.MockUploader{Err: failure}

	var reported error
	finished := false
	opts := testOptions(f)
	opts.OnError = func(err error) { reported = err }
	opts.OnFinish = func() { finished = true }

	err := NewBuilder(&manifest.Static{Info: f.info}, up, opts).Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, err, reported)
	assert.False(t, finished)

	var uerr *UploadError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "media", uerr.Stage)
	assert.ErrorIs(t, err, failure)

	_, statErr := os.Stat(filepath.Join(f.out, "index.html"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuildRejectsHashTemplate(t *testing.T) {
	f := newFixture(t)
	f.info.ChunkFilename = "js/[id].[hash].js"
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	opts := testOptions(f)
	opts.OnError = func(error) {}

	err := NewBuilder(&manifest.Static{Info: f.info}, up, opts).Build(context.Background())
	var tplErr *PathTemplateError
	require.True(t, errors.As(err, &tplErr))
	assert.Equal(t, "[hash]", tplErr.Placeholder)
	assert.Empty(t, up.Calls)
}

func TestBuildWaitFor(t *testing.T) {
	f := newFixture(t)
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	opts := testOptions(f)
	opts.OnError = func(error) {}
	opts.WaitFor = func(ctx context.Context) error {
		return context.Canceled
	}

	err := NewBuilder(&manifest.Static{Info: f.info}, up, opts).Build(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, up.Calls)
}

func TestBuildStaticDirsAndExclude(t *testing.T) {
	f := newFixture(t)
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	opts := testOptions(f)
	opts.StaticDirs = []string{f.dir}
	opts.Exclude = []string{"fonts/**"}

	info := f.info
	info.Assets = nil
	require.NoError(t, NewBuilder(&manifest.Static{Info: info}, up, opts).Build(context.Background()))

	names := uploadedNames(up)
	assert.Contains(t, names, "logo.png")
	assert.NotContains(t, names, "icons.woff2")
	assert.Contains(t, f.read(t, f.out, "index.html"), `<script src="https://cdn.test/main.js"></script>`)
}

func TestBuildDirtyCheck(t *testing.T) {
	f := newFixture(t)
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	opts := testOptions(f)
	opts.DirtyCheck = true

	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, up, opts).Build(context.Background()))

	last := up.Calls[len(up.Calls)-1]
	assert.Len(t, last, 3, "every script is uploaded again")
}

func TestBuildForceCopyTemplate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "index.html"), []byte("<p>static</p>"), 0644))
	require.NoError(t, os.MkdirAll(f.out, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.out, "index.html"), []byte("stale"), 0644))

	opts := testOptions(f)
	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, &cdn.MockUploader{}, opts).Build(context.Background()))
	assert.Equal(t, "stale", f.read(t, f.out, "index.html"))

	opts.ForceCopyTemplate = true
	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, &cdn.MockUploader{}, opts).Build(context.Background()))
	assert.Equal(t, "<p>static</p>", f.read(t, f.out, "index.html"))
}

func TestInitValidation(t *testing.T) {
	provider := &manifest.Static{}
	up := &cdn.MockUploader{}

	cases := map[string]func(*Options){
		"resolve":     func(o *Options) { o.Resolve = []string{" ", "."} },
		"slice_limit": func(o *Options) { o.SliceLimit = -1 },
		"exclude":     func(o *Options) { o.Exclude = []string{"["} },
	}
	for option, mutate := range cases {
		opts := DefaultOptions()
		mutate(&opts)

		err := NewBuilder(provider, up, opts).Init()
		var cerr *ConfigurationError
		require.True(t, errors.As(err, &cerr), option)
		assert.Equal(t, option, cerr.Option)
	}

	opts := DefaultOptions()
	opts.SliceLimit = 0
	opts.Resolve = []string{".html", "tpl"}
	b := NewBuilder(provider, up, opts)
	require.NoError(t, b.Init())
	assert.Equal(t, cdn.DefaultSliceLimit, b.Options().SliceLimit)
	assert.Equal(t, []string{"html", "tpl"}, b.Options().Resolve)

	var cerr *ConfigurationError
	assert.True(t, errors.As(NewBuilder(provider, nil, opts).Init(), &cerr))
}

func TestMapSrcToDist(t *testing.T) {
	assert.Equal(t, "/out/a/index.html", mapSrcToDist("/src/a/index.html", "/src", "/out"))
	assert.Equal(t, "/other/index.html", mapSrcToDist("/other/index.html", "/src", "/out"))
	assert.Equal(t, "/src/index.html", mapSrcToDist("/src/index.html", "/src", ""))
	assert.Equal(t, "/src/index.html", mapSrcToDist("/src/index.html", "/src", "/src"))
}

func TestWriteIfNeededMinifies(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(&manifest.Static{}, &cdn.MockUploader{}, DefaultOptions())
	b.filewriter = NewTDMinifier()

	dst := filepath.Join(dir, "css", "app.css")
	content := ".a { color : red ; }"

	written, err := b.writeIfNeeded(dst, content, content, false)
	require.NoError(t, err)
	assert.True(t, written, "minified files are always written")

	out, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, ".a{color:red}", string(out))

	// scripts go through untouched
	js := filepath.Join(dir, "app.js")
	written, err = b.writeIfNeeded(js, "var a = 1;", "", false)
	require.NoError(t, err)
	assert.True(t, written)
	out, err = os.ReadFile(js)
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;", string(out))

	written, err = b.writeIfNeeded(js, "var a = 1;", "var a = 1;", false)
	require.NoError(t, err)
	assert.False(t, written)
}

const styleRuntime = `var cssChunks = {"1":1,"2":1};
var href = "./css/" + chunkId + ".css";
script.src = __webpack_require__.p + "js/" + chunkId + ".chunk.js";
__webpack_require__.p = "/static/";
`

// newStyleFixture inlines a runtime loading chunk stylesheets in the
// template. Only chunk 1 has a stylesheet in the build.
func newStyleFixture(t *testing.T, runtime string) *fixture {
	t.Helper()
	f := newFixture(t)
	f.info.PublicPath = "/static/"
	f.write(t, "css/1.css", ".lazy{color:red}")
	f.write(t, "js/runtime.js", runtime)
	f.write(t, "index.html", "<script>\n"+runtime+"</script>\n")
	return f
}

func TestBuildAsyncStyles(t *testing.T) {
	f := newStyleFixture(t, styleRuntime)
	f.info.RuntimeChunk = true
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, up, testOptions(f)).Build(context.Background()))

	want := `var cssChunks = {"1":1,"2":1};
var href = {"1":"https://cdn.test/1.css","2":"/static/./css/2.css"}[chunkId];
script.src = {"1":"https://cdn.test/1.chunk.js"}[chunkId];
__webpack_require__.p = "";
`
	assert.Equal(t, want, f.read(t, f.dir, "js/runtime.js"))
	assert.Equal(t, "<script>\n"+want+"</script>\n", f.read(t, f.out, "index.html"))
	assert.Contains(t, uploadedNames(up), "1.css")
}

func TestBuildAsyncStylesDisabled(t *testing.T) {
	f := newStyleFixture(t, styleRuntime)
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	opts := testOptions(f)
	opts.AsyncCSS = false
	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, up, opts).Build(context.Background()))

	assert.Contains(t, f.read(t, f.dir, "js/runtime.js"), `var href = "./css/" + chunkId + ".css";`)
	assert.Contains(t, f.read(t, f.out, "index.html"), `var href = "./css/" + chunkId + ".css";`)
}

func TestBuildRuntimeChunkTemplate(t *testing.T) {
	f := newStyleFixture(t, styleRuntime)
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	// without a runtime chunk the inlined loading code is left to the bundler
	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, up, testOptions(f)).Build(context.Background()))
	out := f.read(t, f.out, "index.html")
	assert.Contains(t, out, `script.src = __webpack_require__.p + "js/" + chunkId + ".chunk.js";`)
	assert.Contains(t, out, `__webpack_require__.p = "/static/";`)

	f = newStyleFixture(t, styleRuntime)
	f.info.RuntimeChunk = true
	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, up, testOptions(f)).Build(context.Background()))
	out = f.read(t, f.out, "index.html")
	assert.Contains(t, out, `script.src = {"1":"https://cdn.test/1.chunk.js"}[chunkId];`)
	assert.Contains(t, out, `__webpack_require__.p = "";`)
	assert.NotContains(t, out, "__webpack_require__.p +")
}

func TestBuildAsyncStylesMalformed(t *testing.T) {
	buf := &bytes.Buffer{}
	tlogger.SetOutput(buf)

	const malformed = `var href = "./css/" + chunkId + ;`
	runtime := strings.Replace(styleRuntime, `var href = "./css/" + chunkId + ".css";`, malformed, 1)
	f := newStyleFixture(t, runtime)
	f.info.RuntimeChunk = true
	up := &cdn.MockUploader{BaseURL: "https://cdn.test"}

	opts := testOptions(f)
	var reported error
	opts.OnError = func(err error) { reported = err }

	require.NoError(t, NewBuilder(&manifest.Static{Info: f.info}, up, opts).Build(context.Background()))
	assert.NoError(t, reported)

	js := f.read(t, f.dir, "js/runtime.js")
	assert.Contains(t, js, "\n"+malformed+"\n")
	// the rest of the pass still runs
	assert.Contains(t, js, `script.src = {"1":"https://cdn.test/1.chunk.js"}[chunkId];`)
	assert.Contains(t, f.read(t, f.out, "index.html"), "\n"+malformed+"\n")
	assert.Contains(t, buf.String(), "stylesheet loading code left unchanged")
}

func TestPassSharesPatterns(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(&manifest.Static{Info: f.info}, &cdn.MockUploader{BaseURL: "https://cdn.test"}, testOptions(f))
	require.NoError(t, b.Init())

	chunkFiles, err := ResolveChunkFilenames(f.info.Chunks, f.info.ChunkFilename)
	require.NoError(t, err)
	p := newPass(&f.info, b.uploader, chunkFiles)
	require.NoError(t, b.collect(p))

	// images and fonts are rewritten into every script and stylesheet
	require.NoError(t, b.stageMedia(context.Background(), p))
	assert.Equal(t, 2, p.patterns.Len())

	require.NoError(t, b.stageTemplates(context.Background(), p))
	assert.Equal(t, 2, p.patterns.Len())
	assert.Contains(t, f.read(t, f.out, "index.html"), `<img src="https://cdn.test/logo.png">`)
}
