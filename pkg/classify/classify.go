package classify

import (
	"path"
	"strings"
)

type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindFont
	KindStylesheet
	KindScript
	KindTemplate
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindFont:
		return "font"
	case KindStylesheet:
		return "stylesheet"
	case KindScript:
		return "script"
	case KindTemplate:
		return "template"
	}
	return "other"
}

var (
	ImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "ico"}
	FontExtensions  = []string{"woff", "woff2", "ttf", "otf", "svg", "eot"}
)

// Asset is one build output file: its logical name and where it lives.
type Asset struct {
	Name string
	Path string
}

// Handler claims the files of one kind.
type Handler interface {
	Kind() Kind
	CanHandle(path string) bool
}

type extHandler struct {
	kind Kind
	exts map[string]struct{}
}

// NewExtensionHandler claims files whose extension, without the dot, is one
// of exts. The comparison is case sensitive.
func NewExtensionHandler(kind Kind, exts ...string) Handler {
	h := &extHandler{kind: kind, exts: make(map[string]struct{}, len(exts))}
	for _, e := range exts {
		h.exts[strings.TrimPrefix(e, ".")] = struct{}{}
	}
	return h
}

func (h *extHandler) Kind() Kind {
	return h.kind
}

func (h *extHandler) CanHandle(p string) bool {
	ext := path.Ext(strings.ReplaceAll(p, `\`, "/"))
	if ext == "" {
		return false
	}
	_, ok := h.exts[ext[1:]]
	return ok
}

// Classifier asks its handlers in order, the first one claiming a file wins.
type Classifier struct {
	handlers []Handler
}

// New returns the default classifier. templateExts lists the template
// extensions, "html" when empty.
func New(templateExts ...string) *Classifier {
	if len(templateExts) == 0 {
		templateExts = []string{"html"}
	}
	return NewWithHandlers(
		NewExtensionHandler(KindImage, ImageExtensions...),
		NewExtensionHandler(KindStylesheet, "css"),
		NewExtensionHandler(KindScript, "js"),
		NewExtensionHandler(KindFont, FontExtensions...),
		NewExtensionHandler(KindTemplate, templateExts...),
	)
}

func NewWithHandlers(handlers ...Handler) *Classifier {
	return &Classifier{handlers: handlers}
}

func (c *Classifier) Kind(p string) Kind {
	for _, h := range c.handlers {
		if h.CanHandle(p) {
			return h.Kind()
		}
	}
	return KindOther
}

// Classes groups assets per kind, keeping their input order.
type Classes struct {
	Images      []Asset
	Fonts       []Asset
	Stylesheets []Asset
	Scripts     []Asset
	Templates   []Asset
	Other       []Asset
}

func (c *Classifier) Classify(assets []Asset) *Classes {
	out := &Classes{}
	for _, a := range assets {
		switch c.Kind(a.Path) {
		case KindImage:
			out.Images = append(out.Images, a)
		case KindFont:
			out.Fonts = append(out.Fonts, a)
		case KindStylesheet:
			out.Stylesheets = append(out.Stylesheets, a)
		case KindScript:
			out.Scripts = append(out.Scripts, a)
		case KindTemplate:
			out.Templates = append(out.Templates, a)
		default:
			out.Other = append(out.Other, a)
		}
	}
	return out
}

// Media returns images then fonts, the first upload batch.
func (c *Classes) Media() []Asset {
	media := make([]Asset, 0, len(c.Images)+len(c.Fonts))
	media = append(media, c.Images...)
	return append(media, c.Fonts...)
}

// Paths returns the paths of assets, in order.
func Paths(assets []Asset) []string {
	paths := make([]string, len(assets))
	for i, a := range assets {
		paths[i] = a.Path
	}
	return paths
}
