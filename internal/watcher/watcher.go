package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/toastate/toastcdn/internal/tlogger"
)

// DefaultDebounce is the quiet period closing a batch of changes.
const DefaultDebounce = 500 * time.Millisecond

const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// StartWatcher watches folders recursively and sends the changed paths that
// match accepts. A nil match accepts everything. The channel is closed once
// ctx is done.
func StartWatcher(ctx context.Context, match func(string) bool, folders ...string) (<-chan string, error) {
	wch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, folder := range folders {
		if err := addTree(wch, folder); err != nil {
			wch.Close()
			return nil, err
		}
	}

	outCh := make(chan string, 100)

	go func() {
		defer close(outCh)
		defer wch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-wch.Events:
				if !ok {
					return
				}
				tlogger.Debug("watcher", "event", "op", event.Op.String(), "path", event.Name)

				if event.Op&fsnotify.Create == fsnotify.Create {
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
						if err := addTree(wch, event.Name); err != nil {
							tlogger.Warn("watcher", "add", "path", event.Name, "err", err)
						}
					}
				}

				if event.Op&changeOps == 0 || (match != nil && !match(event.Name)) {
					continue
				}
				tlogger.Info("msg", "Detected change", "path", event.Name)
				select {
				case outCh <- event.Name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-wch.Errors:
				if !ok {
					return
				}
				tlogger.Warn("watcher", "error", "err", err)
			}
		}
	}()

	return outCh, nil
}

func addTree(wch *fsnotify.Watcher, folder string) error {
	return filepath.Walk(folder, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return wch.Add(path)
		}
		return nil
	})
}

// Debounce groups the values of in until nothing was received for wait.
// The returned channel is closed when in is closed or ctx is done.
func Debounce(ctx context.Context, in <-chan string, wait time.Duration) <-chan []string {
	out := make(chan []string)

	go func() {
		defer close(out)

		for {
			var batch []string
			select {
			case <-ctx.Done():
				return
			case p, ok := <-in:
				if !ok {
					return
				}
				batch = append(batch, p)
			}

		rootFor:
			for {
				select {
				case p, ok := <-in:
					if !ok {
						break rootFor
					}
					batch = append(batch, p)
				case <-time.After(wait):
					break rootFor
				case <-ctx.Done():
					return
				}
			}

			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// OnChange calls fn with every debounced batch of changes below folders
// accepted by match. It blocks until ctx is done.
func OnChange(ctx context.Context, match func(string) bool, fn func([]string), folders ...string) error {
	updates, err := StartWatcher(ctx, match, folders...)
	if err != nil {
		return err
	}

	for batch := range Debounce(ctx, updates, DefaultDebounce) {
		fn(batch)
	}
	return ctx.Err()
}

// SameFile returns a match accepting only p.
func SameFile(p string) func(string) bool {
	want, err := filepath.Abs(p)
	if err != nil {
		want = filepath.Clean(p)
	}
	return func(name string) bool {
		got, err := filepath.Abs(name)
		if err != nil {
			got = filepath.Clean(name)
		}
		return got == want
	}
}
