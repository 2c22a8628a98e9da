package cdn

import (
	"context"

	"github.com/toastate/toastcdn/internal/tlogger"
	"github.com/toastate/toastcdn/pkg/rewrite"
)

// Pairs maps a local path to the URL it was uploaded to.
type Pairs map[string]string

// Merge adds other to p, other wins on conflicts.
func (p Pairs) Merge(other Pairs) Pairs {
	if p == nil {
		p = make(Pairs, len(other))
	}
	for k, v := range other {
		p[k] = v
	}
	return p
}

// Sorted returns the pairs ordered for rewriting.
func (p Pairs) Sorted() []rewrite.Pair {
	return rewrite.PairsFromMap(p)
}

// Uploader sends files to a CDN. It must return an entry for every path it
// handled and never one for a path it was not given.
type Uploader interface {
	Upload(ctx context.Context, localPaths []string) (Pairs, error)
}

type UploaderFunc func(ctx context.Context, localPaths []string) (Pairs, error)

func (f UploaderFunc) Upload(ctx context.Context, localPaths []string) (Pairs, error) {
	return f(ctx, localPaths)
}

// restrict keeps the results matching one of inputs, keyed by the input
// spelling. Results are matched after normalization so an uploader may
// return its own separator style.
func restrict(res Pairs, inputs []string) Pairs {
	known := make(map[string]string, len(inputs))
	for _, in := range inputs {
		known[rewrite.NormalizePath(in)] = in
	}

	out := make(Pairs, len(res))
	for local, remote := range res {
		in, ok := known[rewrite.NormalizePath(local)]
		if !ok {
			tlogger.Warn("cdn", "upload", "msg", "dropping result for a file that was not uploaded", "local", local, "remote", remote)
			continue
		}
		out[in] = remote
	}
	return out
}
