package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/toastate/toastcdn/internal/tlogger"
	"github.com/toastate/toastcdn/internal/watcher"

	_ "embed"
)

//go:embed livereload.html
var liveReloadScript []byte

const liveReloadPath = "/__internal/livereload"

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		w.WriteHeader(500)
	},
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Buildtool runs one post-processing pass.
type Buildtool interface {
	Build(ctx context.Context) error
}

type Options struct {
	// DistDir holds the rewritten templates, served at /.
	DistDir string
	// CDNDir is the local CDN directory, served at CDNPrefix.
	CDNDir    string
	CDNPrefix string
	Port      string
	// Override404 is served instead of missing pages.
	Override404 string
	// ManifestPath is watched, each change runs a new pass.
	ManifestPath string
}

type Server struct {
	opts         Options
	reloadBroker *Broker
	buildtool    Buildtool
}

func NewServer(opts Options, buildtool Buildtool) *Server {
	if opts.CDNPrefix == "" {
		opts.CDNPrefix = "/cdn/"
	}
	if !strings.HasPrefix(opts.CDNPrefix, "/") {
		opts.CDNPrefix = "/" + opts.CDNPrefix
	}
	if !strings.HasSuffix(opts.CDNPrefix, "/") {
		opts.CDNPrefix += "/"
	}
	if opts.Override404 != "" && !strings.HasPrefix(opts.Override404, "/") {
		opts.Override404 = "/" + opts.Override404
	}

	s := &Server{
		opts:         opts,
		reloadBroker: newBroker(),
		buildtool:    buildtool,
	}
	go s.reloadBroker.Start()

	return s
}

func (s *Server) TriggerReload() {
	s.reloadBroker.Publish(struct{}{})
}

// Close stops the live reload broker.
func (s *Server) Close() {
	s.reloadBroker.Stop()
}

// Start serves until ctx is done. withBuilder runs a pass first, then a new
// one each time the manifest changes.
func (s *Server) Start(ctx context.Context, withBuilder bool) error {
	defer s.Close()

	if withBuilder && s.buildtool != nil {
		if err := s.buildtool.Build(ctx); err != nil {
			return err
		}

		if s.opts.ManifestPath != "" {
			go func() {
				err := watcher.OnChange(ctx, watcher.SameFile(s.opts.ManifestPath), func(changes []string) {
					if err := s.buildtool.Build(ctx); err != nil {
						return
					}
					s.TriggerReload()
				}, filepath.Dir(s.opts.ManifestPath))
				if err != nil && !errors.Is(err, context.Canceled) {
					tlogger.Error("msg", "Watcher stopped", "path", s.opts.ManifestPath, "err", err)
				}
			}()
		}
	}

	srv := &http.Server{
		Addr:    ":" + s.opts.Port,
		Handler: s.Handler(),
	}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	// We use println here so the address can be copied or opened directly from the terminal
	fmt.Println("Listening on http://localhost:" + s.opts.Port)

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(liveReloadPath, s.livereloadHandler)
	if s.opts.CDNDir != "" {
		r.PathPrefix(s.opts.CDNPrefix).Handler(http.StripPrefix(s.opts.CDNPrefix, cdnHandler(s.opts.CDNDir)))
	}
	r.PathPrefix("/").HandlerFunc(s.fileServer(s.opts.DistDir, s.opts.Override404))
	return r
}

// cdnHandler serves the local CDN directory to any origin.
func cdnHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-cache")
		fs.ServeHTTP(w, r)
	})
}

// resolveFile finds the file served for upath: the file itself, upath.html
// or upath/index.html.
func resolveFile(dir, upath string) (string, bool, error) {
	const indexPage = "index.html"

	fullName := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+upath)))
	candidates := []string{fullName, fullName + ".html", filepath.Join(fullName, indexPage)}

	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil {
			if !os.IsNotExist(err) {
				return "", false, err
			}
			continue
		}
		if !info.IsDir() {
			return c, true, nil
		}
	}
	return "", false, nil
}

func (s *Server) fileServer(dir string, override404 string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		fullName, found, err := resolveFile(dir, r.URL.Path)
		if err == nil && !found && override404 != "" && r.URL.Path != override404 {
			fullName, found, err = resolveFile(dir, override404)
		}
		if err != nil {
			w.WriteHeader(500)
			w.Write([]byte("Internal error: can't open file: " + err.Error()))
			return
		}
		if !found {
			w.WriteHeader(404)
			w.Write([]byte("404 page not found"))
			return
		}

		content, err := os.Open(fullName)
		if err != nil {
			w.WriteHeader(500)
			w.Write([]byte("Internal error: can't open file"))
			return
		}
		defer content.Close()

		ctype := mime.TypeByExtension(filepath.Ext(fullName))
		if ctype == "" {
			// read a chunk to decide between utf-8 text and binary
			var buf [512]byte
			n, _ := io.ReadFull(content, buf[:])
			ctype = http.DetectContentType(buf[:n])
			_, err := content.Seek(0, io.SeekStart) // rewind to output whole file
			if err != nil {
				w.WriteHeader(500)
				w.Write([]byte("Internal error: can't seek file: " + err.Error()))
				return
			}
		}
		w.Header().Set("Content-Type", ctype)
		io.Copy(w, content)
		if strings.HasPrefix(ctype, "text/html") {
			_, err = w.Write(liveReloadScript)
			if err != nil {
				tlogger.Error("msg", "could not live reload", "error", err)
			}
		}
	}
}

func (s *Server) livereloadHandler(w http.ResponseWriter, r *http.Request) {
	tlogger.Debug("msg", "WS Established")

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	waitCh := s.reloadBroker.Subscribe()
	defer s.reloadBroker.Unsubscribe(waitCh)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-waitCh:
		err = c.WriteMessage(websocket.TextMessage, []byte("reload"))
		if err != nil {
			tlogger.Warn("msg", "Reload socket error", "error", err)
		}
	case <-gone:
	case <-r.Context().Done():
	}
}
