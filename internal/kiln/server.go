package ik

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// UniversalFS is the read side of the build tree the dev server serves.
type UniversalFS interface {
	ReadFile(name string) ([]byte, error)
	Open(name string) (fs.File, error)
	Stat(name string) (fs.FileInfo, error)
}

type universalFS struct {
	FS fs.FS
}

func (u *universalFS) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(u.FS, name)
}

func (u *universalFS) Open(name string) (fs.File, error) {
	return u.FS.Open(name)
}

func (u *universalFS) Stat(name string) (fs.FileInfo, error) {
	return fs.Stat(u.FS, name)
}

func newUniversalFS(fsys fs.FS) UniversalFS {
	return &universalFS{FS: fsys}
}

func (s *DevSession) newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(eventsPath, sseHandler(s.manager))
	mux.Handle(wsPath, wsHandler(s.manager))
	mux.HandleFunc(clientPath, clientScriptHandler)
	mux.Handle("/", serveBuildHandler(newUniversalFS(os.DirFS(s.dirs.Build))))
	return mux
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

// serveBuildHandler serves files from the build tree. Pages are read in
// full so the live-reload client can be injected; everything else goes
// through http.FileServer.
func serveBuildHandler(fsys UniversalFS) http.Handler {
	files := http.FileServer(http.FS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "."
		}
		if info, err := fsys.Stat(name); err == nil && info.IsDir() {
			if !strings.HasSuffix(r.URL.Path, "/") {
				// as http.FileServer does
				target := r.URL.Path + "/"
				if r.URL.RawQuery != "" {
					target += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, target, http.StatusMovedPermanently)
				return
			}
			name = path.Join(name, "index.html")
		}
		if path.Ext(name) != ".html" {
			files.ServeHTTP(w, r)
			return
		}

		page, err := fsys.ReadFile(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(injectClientScript(page))
	})
}
