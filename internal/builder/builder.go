package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	pkgerrors "github.com/pkg/errors"

	"github.com/toastate/toastcdn/internal/cache"
	"github.com/toastate/toastcdn/internal/cdn"
	"github.com/toastate/toastcdn/internal/manifest"
	"github.com/toastate/toastcdn/internal/tlogger"
	"github.com/toastate/toastcdn/pkg/classify"
	"github.com/toastate/toastcdn/pkg/rewrite"
)

// Init is idempotent, multiple calls will only initialize the builder once
func (b *Builder) Init() error {
	if b.initialized {
		return nil
	}

	if b.provider == nil {
		return &ConfigurationError{Option: "manifest", Reason: "no build manifest provider"}
	}
	if b.uploader == nil {
		return &ConfigurationError{Option: "uploader", Reason: "no uploader"}
	}

	var exts []string
	for _, r := range b.opts.Resolve {
		if r = strings.TrimPrefix(strings.TrimSpace(r), "."); r != "" {
			exts = append(exts, r)
		}
	}
	if len(exts) == 0 {
		return &ConfigurationError{Option: "resolve", Reason: "at least one template extension is required"}
	}
	b.opts.Resolve = exts

	if b.opts.SliceLimit < 0 {
		return &ConfigurationError{Option: "slice_limit", Reason: "must not be negative"}
	}
	if b.opts.SliceLimit == 0 {
		b.opts.SliceLimit = cdn.DefaultSliceLimit
	}

	if b.opts.CacheLocation != "" && !b.opts.EnableCache {
		tlogger.Warn("builder", "init", "msg", "cache_location is set but the cache is disabled", "cache_location", b.opts.CacheLocation)
	}

	walker, err := classify.NewWalker(b.opts.Exclude...)
	if err != nil {
		return &ConfigurationError{Option: "exclude", Reason: err.Error()}
	}
	b.walker = walker
	b.classifier = classify.New(b.opts.Resolve...)

	if b.filewriter == nil {
		if b.opts.Minify {
			b.filewriter = NewTDMinifier()
		} else {
			b.filewriter = &NOOPMinifier{}
		}
	}

	b.initialized = true
	return nil
}

// Build runs one post-processing pass over the build described by the
// manifest provider. The error, if any, is also handed to OnError.
func (b *Builder) Build(ctx context.Context) error {
	err := b.build(ctx)
	if err != nil {
		if b.opts.OnError != nil {
			b.opts.OnError(err)
		} else {
			tlogger.Error("builder", "build", "msg", "build failed", "err", err)
		}
		return err
	}

	if b.opts.OnFinish != nil {
		b.opts.OnFinish()
	}
	return nil
}

// templateFile is a template held in memory until the last stage.
type templateFile struct {
	path     string
	content  string
	original string
}

// pass holds the state of one Build call.
type pass struct {
	info     *manifest.BuildInfo
	uploader cdn.Uploader

	src, dist string

	chunkFiles rewrite.ChunkMap
	chunkURLs  rewrite.ChunkMap
	pairs      cdn.Pairs
	patterns   *rewrite.Patterns

	classes   *classify.Classes
	templates []*templateFile

	commonScripts []string
	chunkScripts  []string
	plainScripts  []string
}

// newPass starts a pass. Its patterns are shared by every file it rewrites.
func newPass(info *manifest.BuildInfo, up cdn.Uploader, chunkFiles rewrite.ChunkMap) *pass {
	return &pass{
		info:       info,
		uploader:   up,
		chunkFiles: chunkFiles,
		chunkURLs:  rewrite.ChunkMap{},
		pairs:      cdn.Pairs{},
		patterns:   rewrite.NewPatterns(),
	}
}

func (b *Builder) build(ctx context.Context) error {
	if err := b.Init(); err != nil {
		return err
	}

	if b.opts.WaitFor != nil {
		if err := b.opts.WaitFor(ctx); err != nil {
			return pkgerrors.Wrap(err, "waiting for the build")
		}
	}

	info, err := b.provider.BuildInfo(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "reading the build manifest")
	}
	if info.Minimize {
		tlogger.Warn("builder", "manifest", "msg", "the build is minimized, chunk loading code may not be recognized")
	}
	if info.PublicPath != "" {
		tlogger.Warn("builder", "manifest", "msg", "the build has a public path, it is stripped from the rewritten files", "public_path", info.PublicPath)
	}

	chunkFiles, err := ResolveChunkFilenames(info.Chunks, info.ChunkFilename)
	if err != nil {
		return err
	}

	up, closeCache, err := b.uploaderChain()
	if err != nil {
		return err
	}
	defer closeCache()

	p := newPass(info, up, chunkFiles)

	tlogger.Info("msg", "Processing started", "path", info.OutputPath)
	defer tlogger.Info("msg", "Processing finished", "path", info.OutputPath)

	if err := b.collect(p); err != nil {
		return pkgerrors.Wrap(err, "collecting the build files")
	}

	stages := []struct {
		name string
		run  func(context.Context, *pass) error
	}{
		{"media", b.stageMedia},
		{"chunks", b.stageChunks},
		{"stylesheets", b.stageStylesheets},
		{"common chunks", b.stageCommon},
		{"scripts", b.stageScripts},
		{"templates", b.stageTemplates},
	}
	for _, s := range stages {
		if err := s.run(ctx, p); err != nil {
			var uerr *UploadError
			if errors.As(err, &uerr) {
				return err
			}
			return pkgerrors.Wrapf(err, "%s stage", s.name)
		}
	}

	tlogger.Debug("builder", "chunks", "msg", "chunk urls", "urls", spew.Sdump(p.chunkURLs))
	return nil
}

// uploaderChain wraps the uploader with batching, the cache and the URL hook.
// The returned func flushes the cache opened here.
func (b *Builder) uploaderChain() (cdn.Uploader, func(), error) {
	up := cdn.Parallel(b.uploader, b.opts.SliceLimit, b.opts.LogLocalFiles)
	closeCache := func() {}

	c := b.cache
	if c == nil && b.opts.EnableCache {
		location := b.opts.CacheLocation
		if location == "" {
			location = cache.DefaultLocation
		}
		fc, err := cache.Open(location, b.opts.PassToCdn)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(err, "opening the upload cache")
		}
		c = fc
		closeCache = func() {
			if err := fc.Close(); err != nil {
				tlogger.Warn("builder", "cache", "msg", "could not save the upload cache", "path", location, "err", err)
			}
		}
	}
	if c != nil {
		up = cdn.WithCache(up, c)
	}

	return cdn.WithURLHook(up, b.opts.URLHook), closeCache, nil
}

// roots returns the template source and destination and the static asset
// directories, all absolute.
func (b *Builder) roots(info *manifest.BuildInfo) (string, string, []string, error) {
	src, dist, static := b.opts.Src, b.opts.Dist, b.opts.StaticDirs
	if b.opts.SmartMode {
		src, dist, static = info.OutputPath, info.OutputPath, []string{info.OutputPath}
	}
	if dist == "" {
		dist = src
	}

	abs := func(p string) (string, error) {
		if p == "" {
			return "", nil
		}
		a, err := filepath.Abs(p)
		return filepath.ToSlash(a), err
	}

	var err error
	if src, err = abs(src); err != nil {
		return "", "", nil, err
	}
	if dist, err = abs(dist); err != nil {
		return "", "", nil, err
	}
	dirs := make([]string, 0, len(static))
	for _, d := range static {
		a, err := abs(d)
		if err != nil {
			return "", "", nil, err
		}
		if a != "" {
			dirs = append(dirs, a)
		}
	}
	return src, dist, dirs, nil
}

// collect classifies the build files and loads the templates.
func (b *Builder) collect(p *pass) error {
	src, dist, static, err := b.roots(p.info)
	if err != nil {
		return err
	}
	p.src, p.dist = src, dist

	var assets []classify.Asset
	if len(static) > 0 {
		if assets, err = b.walker.Assets(static...); err != nil {
			return err
		}
	} else {
		for _, a := range p.info.ClassifyAssets() {
			if b.walker.ShouldHandle(a.Name) {
				assets = append(assets, a)
			}
		}
	}
	p.classes = b.classifier.Classify(assets)

	templates := p.classes.Templates
	if src != "" {
		found, err := b.walker.Assets(src)
		if err != nil {
			return err
		}
		templates = templates[:0:0]
		for _, a := range found {
			if b.classifier.Kind(a.Path) == classify.KindTemplate {
				templates = append(templates, a)
			}
		}
	}
	if p.src == "" {
		// manifest templates are mapped from the output path
		p.src = filepath.ToSlash(p.info.OutputPath)
	}

	for _, a := range templates {
		raw, err := os.ReadFile(filepath.FromSlash(a.Path))
		if err != nil {
			return err
		}
		p.templates = append(p.templates, &templateFile{path: a.Path, content: string(raw), original: string(raw)})
	}

	tlogger.Debug("builder", "collect", "msg", "classified",
		"images", len(p.classes.Images), "fonts", len(p.classes.Fonts),
		"stylesheets", len(p.classes.Stylesheets), "scripts", len(p.classes.Scripts),
		"templates", len(p.templates), "other", len(p.classes.Other))
	return nil
}

// splitScripts sorts the scripts into common chunks, which carry chunk
// loading code, lazily loaded chunks, and the rest.
func (b *Builder) splitScripts(p *pass) error {
	for _, s := range classify.Paths(p.classes.Scripts) {
		raw, err := os.ReadFile(filepath.FromSlash(s))
		if err != nil {
			return err
		}
		switch {
		case rewrite.IsEntryChunk(string(raw)):
			p.commonScripts = append(p.commonScripts, s)
		case isChunkFile(s, p.chunkFiles):
			p.chunkScripts = append(p.chunkScripts, s)
		default:
			p.plainScripts = append(p.plainScripts, s)
		}
	}
	return nil
}

func (b *Builder) upload(ctx context.Context, p *pass, stage string, paths []string) (cdn.Pairs, error) {
	if len(paths) == 0 {
		return cdn.Pairs{}, nil
	}
	tlogger.Info("builder", "upload", "stage", stage, "files", len(paths))

	res, err := p.uploader.Upload(ctx, paths)
	if err != nil {
		return nil, &UploadError{Stage: stage, Files: len(paths), Err: err}
	}
	p.pairs.Merge(res)
	return res, nil
}

// mergeChunkURLs records the URL of every uploaded chunk file.
func mergeChunkURLs(p *pass, res cdn.Pairs) {
	found := make(rewrite.ChunkMap, len(res))
	for local, remote := range res {
		if id, ok := IDForChunk(local, p.chunkFiles); ok {
			found[id] = remote
		}
	}
	p.chunkURLs.Merge(found)
}

// stageMedia uploads images and fonts, then points scripts and stylesheets
// to them.
func (b *Builder) stageMedia(ctx context.Context, p *pass) error {
	res, err := b.upload(ctx, p, "media", classify.Paths(p.classes.Media()))
	if err != nil {
		return err
	}

	pairs := res.Sorted()
	files := append(classify.Paths(p.classes.Scripts), classify.Paths(p.classes.Stylesheets)...)
	err = b.rewriteInPlace(files, func(path, content string) (string, error) {
		return p.patterns.Rewrite(b.refineContent(content, path, p.info.PublicPath), pairs), nil
	})
	if err != nil {
		return err
	}

	return b.splitScripts(p)
}

// stageChunks uploads the lazily loaded chunks.
func (b *Builder) stageChunks(ctx context.Context, p *pass) error {
	res, err := b.upload(ctx, p, "chunks", p.chunkScripts)
	if err != nil {
		return err
	}
	mergeChunkURLs(p, res)
	return nil
}

// stageStylesheets uploads the stylesheets and points the asynchronous
// stylesheet loading code to them.
func (b *Builder) stageStylesheets(ctx context.Context, p *pass) error {
	res, err := b.upload(ctx, p, "stylesheets", classify.Paths(p.classes.Stylesheets))
	if err != nil {
		return err
	}
	if !b.opts.AsyncCSS {
		return nil
	}

	styles := res.Sorted()
	rewriteStyles := func(path, content string) string {
		out, err := rewrite.RewriteAsyncStyles(content, styles, p.info.PublicPath)
		if err != nil {
			tlogger.Warn("builder", "asyncstyle", "msg", "stylesheet loading code left unchanged", "file", path, "err", err)
		}
		return out
	}

	for _, t := range p.templates {
		t.content = rewriteStyles(t.path, t.content)
	}
	return b.rewriteInPlace(p.commonScripts, func(path, content string) (string, error) {
		return rewriteStyles(path, content), nil
	})
}

// stageCommon points the common chunks to the uploaded chunks, then uploads
// them. With a runtime chunk the templates may inline the loading code too.
func (b *Builder) stageCommon(ctx context.Context, p *pass) error {
	tlogger.Debug("builder", "chunks", "msg", "partial chunk urls", "urls", spew.Sdump(p.chunkURLs))

	if p.info.RuntimeChunk {
		for _, t := range p.templates {
			if !rewrite.IsEntryChunk(t.content) {
				continue
			}
			out, err := rewrite.UpdateScriptSrc(t.content, p.chunkURLs)
			if err != nil {
				return pkgerrors.Wrapf(err, "rewriting %s", t.path)
			}
			t.content = out
		}
	}

	if len(p.commonScripts) == 0 {
		return nil
	}
	err := b.rewriteInPlace(p.commonScripts, func(path, content string) (string, error) {
		return rewrite.UpdateScriptSrc(content, p.chunkURLs)
	})
	if err != nil {
		return err
	}

	res, err := b.upload(ctx, p, "common chunks", p.commonScripts)
	if err != nil {
		return err
	}
	mergeChunkURLs(p, res)
	return nil
}

// stageScripts points the remaining scripts to the chunks, then uploads them.
func (b *Builder) stageScripts(ctx context.Context, p *pass) error {
	scripts := p.plainScripts
	if b.opts.DirtyCheck {
		scripts = classify.Paths(p.classes.Scripts)
	}

	err := b.rewriteInPlace(scripts, func(path, content string) (string, error) {
		return rewrite.UpdateScriptSrc(content, p.chunkURLs)
	})
	if err != nil {
		return err
	}

	_, err = b.upload(ctx, p, "scripts", scripts)
	return err
}

// stageTemplates rewrites the templates with every URL of the pass and
// writes them to the destination tree.
func (b *Builder) stageTemplates(ctx context.Context, p *pass) error {
	pairs := p.pairs.Sorted()

	written := 0
	for _, t := range p.templates {
		content := p.patterns.Rewrite(b.refineContent(t.content, t.path, p.info.PublicPath), pairs)
		dst := mapSrcToDist(t.path, p.src, p.dist)

		ok, err := b.writeIfNeeded(dst, content, t.original, b.opts.ForceCopyTemplate)
		if err != nil {
			return err
		}
		if ok {
			written++
			tlogger.Debug("builder", "template", "msg", "written", "file", dst)
		}
	}
	tlogger.Info("builder", "template", "msg", "templates written", "count", written, "total", len(p.templates))
	return nil
}
