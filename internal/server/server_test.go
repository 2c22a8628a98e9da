package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	root := t.TempDir()
	dist := filepath.Join(root, "dist")
	cdnDir := filepath.Join(root, "cdn")

	files := map[string]string{
		filepath.Join(dist, "index.html"):         "<p>home</p>",
		filepath.Join(dist, "about.html"):         "<p>about</p>",
		filepath.Join(dist, "docs", "index.html"): "<p>docs</p>",
		filepath.Join(dist, "404.html"):           "<p>missing</p>",
		filepath.Join(cdnDir, "app.0123.css"):     "body{}",
	}
	for p, content := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	s := NewServer(Options{DistDir: dist, CDNDir: cdnDir, CDNPrefix: "cdn", Override404: "404.html"}, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func TestFileServer(t *testing.T) {
	_, ts := newTestServer(t)

	cases := map[string]string{
		"/":           "<p>home</p>",
		"/about":      "<p>about</p>",
		"/about.html": "<p>about</p>",
		"/docs":       "<p>docs</p>",
		"/nope":       "<p>missing</p>",
	}
	for p, expected := range cases {
		res, body := get(t, ts.URL+p)
		assert.Equal(t, http.StatusOK, res.StatusCode, p)
		assert.True(t, strings.HasPrefix(body, expected), p)
		assert.Contains(t, body, liveReloadPath, p)
	}
}

func TestFileServerNotFound(t *testing.T) {
	root := t.TempDir()
	s := NewServer(Options{DistDir: root}, nil)
	defer s.Close()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCDNHandler(t *testing.T) {
	_, ts := newTestServer(t)

	res, body := get(t, ts.URL+"/cdn/app.0123.css")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "body{}", body)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestLiveReload(t *testing.T) {
	s, ts := newTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+liveReloadPath, nil)
	require.NoError(t, err)
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		// the handler subscribes after the upgrade
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				s.TriggerReload()
			}
		}
	}()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "reload", string(msg))
}

func TestBroker(t *testing.T) {
	b := newBroker()
	go b.Start()
	defer b.Stop()

	ch := b.Subscribe()
	b.Publish("x")

	select {
	case msg := <-ch:
		assert.Equal(t, "x", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}
	b.Unsubscribe(ch)
}
