package cdn

import (
	"context"
	"fmt"

	"github.com/toastate/toastcdn/internal/cache"
	"github.com/toastate/toastcdn/internal/tlogger"
)

type cached struct {
	next  Uploader
	cache cache.Cache
}

// WithCache skips files whose content was already uploaded and records the
// URLs of the new uploads.
func WithCache(next Uploader, c cache.Cache) Uploader {
	return &cached{next: next, cache: c}
}

func (c *cached) Upload(ctx context.Context, localPaths []string) (Pairs, error) {
	hashes := make(map[string]string, len(localPaths))
	fromCache := make(Pairs)
	var toUpload []string

	for _, p := range localPaths {
		h, err := cache.HashFile(p)
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", p, err)
		}
		hashes[p] = h

		if !c.cache.ShouldUpload(h) {
			if url, ok := c.cache.Lookup(h); ok {
				fromCache[p] = url
				continue
			}
		}
		toUpload = append(toUpload, p)
	}

	tlogger.Debug("cdn", "cache", "msg", "lookup", "cached", len(fromCache), "to_upload", len(toUpload))

	res := make(Pairs)
	if len(toUpload) > 0 {
		var err error
		if res, err = c.next.Upload(ctx, toUpload); err != nil {
			return nil, err
		}
	}

	for local, url := range res {
		if h, ok := hashes[local]; ok {
			c.cache.Record(h, url)
		}
	}
	return res.Merge(fromCache), nil
}
