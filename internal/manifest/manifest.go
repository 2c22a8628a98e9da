package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tidwall/jsonc"

	"github.com/toastate/toastcdn/pkg/classify"
)

// Provider supplies the metadata of the build to post-process.
type Provider interface {
	BuildInfo(ctx context.Context) (*BuildInfo, error)
}

type BuildInfo struct {
	OutputPath    string  `json:"outputPath"`
	PublicPath    string  `json:"publicPath"`
	ChunkFilename string  `json:"chunkFilename"`
	RuntimeChunk  Flag    `json:"runtimeChunk"`
	Minimize      Flag    `json:"minimize"`
	Chunks        []Chunk `json:"chunks"`
	Assets        []Asset `json:"assets"`
}

type Chunk struct {
	ID           ChunkID     `json:"id"`
	Name         string      `json:"name"`
	RenderedHash string      `json:"renderedHash"`
	ContentHash  ContentHash `json:"contentHash"`
}

type Asset struct {
	Name     string `json:"name"`
	ExistsAt string `json:"existsAt"`
}

// ChunkID is a bundler chunk id, a JSON number or string, kept in its string
// form.
type ChunkID string

func (id *ChunkID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ChunkID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("chunk id must be a string or a number: %s", b)
	}
	if i, err := n.Int64(); err == nil {
		*id = ChunkID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ChunkID(n.String())
	return nil
}

// ContentHash accepts a plain hash or the bundler's per source type object,
// of which the javascript entry is kept.
type ContentHash string

func (h *ContentHash) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*h = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*h = ContentHash(s)
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("invalid contentHash: %w", err)
	}
	*h = ContentHash(m["javascript"])
	return nil
}

// Flag is true for any JSON value but false, null, 0 and "". The bundler
// allows runtimeChunk to be a boolean, a string or an object.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "false", "null", "0", `""`:
		*f = false
	default:
		*f = true
	}
	return nil
}

// File reads the build metadata from a JSON manifest written next to the
// build. Comments and trailing commas are allowed.
type File struct {
	Path string
}

func (f *File) BuildInfo(ctx context.Context) (*BuildInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	info := &BuildInfo{}
	if err := json.Unmarshal(jsonc.ToJSON(raw), info); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", f.Path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(f.Path))
	if err != nil {
		return nil, err
	}
	info.Resolve(dir)
	return info, nil
}

// Resolve makes OutputPath absolute, relative to base, and every asset
// location absolute, relative to OutputPath. Assets without a location are
// expected at OutputPath/Name.
func (b *BuildInfo) Resolve(base string) {
	if b.OutputPath == "" {
		b.OutputPath = base
	} else if !filepath.IsAbs(b.OutputPath) {
		b.OutputPath = filepath.Join(base, b.OutputPath)
	}

	for i, a := range b.Assets {
		switch {
		case a.ExistsAt == "":
			a.ExistsAt = filepath.Join(b.OutputPath, filepath.FromSlash(a.Name))
		case !filepath.IsAbs(a.ExistsAt):
			a.ExistsAt = filepath.Join(b.OutputPath, a.ExistsAt)
		}
		b.Assets[i].ExistsAt = filepath.ToSlash(a.ExistsAt)
	}
}

// ClassifyAssets converts the manifest assets for classification.
func (b *BuildInfo) ClassifyAssets() []classify.Asset {
	out := make([]classify.Asset, len(b.Assets))
	for i, a := range b.Assets {
		out[i] = classify.Asset{Name: a.Name, Path: a.ExistsAt}
	}
	return out
}

// Static serves a fixed BuildInfo.
type Static struct {
	Info BuildInfo
}

func (s *Static) BuildInfo(ctx context.Context) (*BuildInfo, error) {
	info := s.Info
	info.Chunks = append([]Chunk(nil), s.Info.Chunks...)
	info.Assets = append([]Asset(nil), s.Info.Assets...)
	return &info, nil
}
