package builder

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/toastate/toastcdn/internal/helpers"
	"github.com/toastate/toastcdn/internal/tlogger"
	"github.com/toastate/toastcdn/pkg/rewrite"
)

// mapSrcToDist moves p from the srcRoot tree to the distRoot tree. Paths
// outside srcRoot are returned unchanged.
func mapSrcToDist(p, srcRoot, distRoot string) string {
	if srcRoot == "" || distRoot == "" || srcRoot == distRoot {
		return p
	}
	rel, err := filepath.Rel(filepath.FromSlash(srcRoot), filepath.FromSlash(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(filepath.Join(filepath.FromSlash(distRoot), rel))
}

// writeIfNeeded writes content to dst when dst is missing, content differs
// from original or force is set. It reports whether dst was written.
func (b *Builder) writeIfNeeded(dst, content, original string, force bool) (bool, error) {
	mt := mediatype(dst)
	if b.filewriter.Enabled() && mt != "" {
		force = true
	}
	if !force && content == original && helpers.FileExists(dst) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(filepath.FromSlash(dst)), 0755); err != nil {
		tlogger.Error("builder", "write", "msg", "output folder creation", "file", dst, "err", err)
		return false, err
	}

	mode := os.FileMode(0644)
	if fi, err := os.Stat(dst); err == nil {
		mode = fi.Mode().Perm()
	}
	of, err := os.OpenFile(filepath.FromSlash(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		tlogger.Error("builder", "write", "msg", "output file creation", "file", dst, "err", err)
		return false, err
	}

	wr := b.filewriter.Writer(mt, of)
	if _, err := wr.Write([]byte(content)); err != nil {
		wr.Close()
		return false, errors.Wrapf(err, "writing %s", dst)
	}
	if err := wr.Close(); err != nil {
		return false, errors.Wrapf(err, "writing %s", dst)
	}
	return true, nil
}

type rewriteFunc func(p, content string) (string, error)

// rewriteInPlace applies fn to every file concurrently and writes back the
// files whose content changed. Failures are collected, a failing file does
// not stop the others.
func (b *Builder) rewriteInPlace(paths []string, fn rewriteFunc) error {
	if len(paths) == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > len(paths) {
		workers = len(paths)
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
		wg     sync.WaitGroup
	)
	work := make(chan string)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				if err := b.rewriteFile(p, fn); err != nil {
					mu.Lock()
					result = multierror.Append(result, err)
					mu.Unlock()
				}
			}
		}()
	}
	for _, p := range paths {
		work <- p
	}
	close(work)
	wg.Wait()

	return result.ErrorOrNil()
}

func (b *Builder) rewriteFile(p string, fn rewriteFunc) error {
	raw, err := os.ReadFile(filepath.FromSlash(p))
	if err != nil {
		tlogger.Error("builder", "rewrite", "msg", "file error", "file", p, "err", err)
		return err
	}
	original := string(raw)

	content, err := fn(p, original)
	if err != nil {
		return errors.Wrapf(err, "rewriting %s", p)
	}

	written, err := b.writeIfNeeded(p, content, original, false)
	if err != nil {
		return err
	}
	if written {
		tlogger.Debug("builder", "rewrite", "msg", "rewritten", "file", p)
	}
	return nil
}

// refineContent prepares content for pair substitution: the public path is
// stripped from stylesheets and templates, then the user replace hook runs.
func (b *Builder) refineContent(content, location, publicPath string) string {
	if b.stripsPublicPath(location) {
		content = rewrite.StripPublicPath(content, publicPath)
	}
	if b.opts.ReplaceFn != nil {
		content = b.opts.ReplaceFn(content, location)
	}
	return content
}

func (b *Builder) stripsPublicPath(location string) bool {
	ext := strings.TrimPrefix(filepath.Ext(location), ".")
	if ext == "css" {
		return true
	}
	for _, r := range b.opts.Resolve {
		if ext == strings.TrimPrefix(r, ".") {
			return true
		}
	}
	return false
}
