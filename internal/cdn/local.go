package cdn

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/toastate/toastcdn/internal/cache"
	"github.com/toastate/toastcdn/internal/helpers"
	"github.com/toastate/toastcdn/internal/tlogger"
)

// hash characters kept in content addressed names
const nameHashLen = 12

// LocalUploader copies files into Dir under content addressed names and
// serves them from BaseURL. It is a self hosted CDN for development and
// for deployments that publish Dir as is.
type LocalUploader struct {
	Dir     string
	BaseURL string
}

func (u *LocalUploader) Upload(ctx context.Context, localPaths []string) (Pairs, error) {
	if u.Dir == "" {
		return nil, errors.New("local uploader: no target directory")
	}

	out := make(Pairs, len(localPaths))
	for _, p := range localPaths {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		h, err := cache.HashFile(p)
		if err != nil {
			return out, err
		}
		name := HashedName(p, h)

		if _, err := helpers.CopyFile(p, filepath.Join(u.Dir, name)); err != nil {
			return out, err
		}
		tlogger.Debug("cdn", "local", "msg", "copied", "file", p, "name", name)
		out[p] = JoinURL(u.BaseURL, name)
	}
	return out, nil
}

// HashedName inserts the first characters of hash before the extension of
// the base name of p: app.js becomes app.<hash>.js.
func HashedName(p, hash string) string {
	base := path.Base(filepath.ToSlash(p))
	if len(hash) > nameHashLen {
		hash = hash[:nameHashLen]
	}
	ext := path.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + hash + ext
}

// JoinURL joins base and name with exactly one slash.
func JoinURL(base, name string) string {
	if base == "" {
		return name
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(name, "/")
}

// MockUploader uploads nothing: every file is given BaseURL + its base name.
// Uploads are recorded in Calls.
type MockUploader struct {
	BaseURL string
	// Err, when set, fails every upload.
	Err error

	mu    sync.Mutex
	Calls [][]string
}

func (m *MockUploader) Upload(ctx context.Context, localPaths []string) (Pairs, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]string(nil), localPaths...))
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	out := make(Pairs, len(localPaths))
	for _, p := range localPaths {
		out[p] = JoinURL(m.BaseURL, path.Base(filepath.ToSlash(p)))
	}
	return out, nil
}

// Uploaded returns every path uploaded so far, in call order.
func (m *MockUploader) Uploaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.Calls {
		out = append(out, c...)
	}
	return out
}
