package cdn

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/toastate/toastcdn/internal/tlogger"
)

const DefaultSliceLimit = 10

type parallel struct {
	next     Uploader
	limit    int
	logFiles bool
}

// Parallel splits every upload into batches of at most sliceLimit files
// and runs them concurrently. The first failing batch cancels the others.
func Parallel(next Uploader, sliceLimit int, logFiles bool) Uploader {
	if sliceLimit <= 0 {
		sliceLimit = DefaultSliceLimit
	}
	return &parallel{next: next, limit: sliceLimit, logFiles: logFiles}
}

// Slice splits files in groups of at most limit, keeping their order.
func Slice(files []string, limit int) [][]string {
	if limit <= 0 {
		limit = DefaultSliceLimit
	}
	var out [][]string
	for len(files) > limit {
		out = append(out, files[:limit:limit])
		files = files[limit:]
	}
	if len(files) > 0 {
		out = append(out, files)
	}
	return out
}

func (p *parallel) Upload(ctx context.Context, localPaths []string) (Pairs, error) {
	if len(localPaths) == 0 {
		return Pairs{}, nil
	}

	batches := Slice(localPaths, p.limit)
	results := make([]Pairs, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		if p.logFiles {
			tlogger.Info("cdn", "upload", "msg", "batch", "index", i, "files", batch)
		}
		g.Go(func() error {
			res, err := p.next.Upload(gctx, batch)
			if err != nil {
				return err
			}
			results[i] = restrict(res, batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(Pairs, len(localPaths))
	for _, res := range results {
		out.Merge(res)
	}
	tlogger.Debug("cdn", "upload", "msg", "batches done", "batches", len(batches), "files", len(localPaths), "uploaded", len(out))
	return out, nil
}
