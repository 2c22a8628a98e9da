package cdn

import (
	"context"
	"fmt"

	"github.com/toastate/toastcdn/internal/tlogger"
)

// URLHook post-processes every uploaded URL before it is used for rewriting.
type URLHook func(remote, local string) string

// URLCallbackError reports a URLHook that returned no URL.
type URLCallbackError struct {
	Local  string
	Remote string
}

func (e *URLCallbackError) Error() string {
	return fmt.Sprintf("url hook returned an empty url for %s (uploaded to %s)", e.Local, e.Remote)
}

type hooked struct {
	next Uploader
	hook URLHook
}

// WithURLHook applies hook to every result of next. A nil hook returns next.
func WithURLHook(next Uploader, hook URLHook) Uploader {
	if hook == nil {
		return next
	}
	return &hooked{next: next, hook: hook}
}

func (h *hooked) Upload(ctx context.Context, localPaths []string) (Pairs, error) {
	res, err := h.next.Upload(ctx, localPaths)
	if err != nil {
		return nil, err
	}
	return ApplyURLHook(res, h.hook), nil
}

// ApplyURLHook returns a copy of pairs with hook applied to every URL.
func ApplyURLHook(pairs Pairs, hook URLHook) Pairs {
	out := make(Pairs, len(pairs))
	for local, remote := range pairs {
		url := hook(remote, local)
		if url == "" {
			tlogger.Warn("cdn", "hook", "msg", "url hook contract violation", "err", &URLCallbackError{Local: local, Remote: remote})
		}
		out[local] = url
	}
	return out
}
