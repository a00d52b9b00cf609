package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/iaconlabs/warpcore/adapter"
)

// StaticOptions configures UseStaticAssets. FS wins over Root.
type StaticOptions struct {
	Root string
	FS   fs.FS
	// MaxAge sets Cache-Control on served files when positive.
	MaxAge time.Duration
}

// UseStaticAssets serves files under prefix for GET and HEAD requests.
func (a *RouterAdapter) UseStaticAssets(prefix string, opts StaticOptions) error {
	fsys := opts.FS
	if fsys == nil {
		if opts.Root == "" {
			return errors.New("platform: static assets need a root or a file system")
		}
		if _, err := os.Stat(opts.Root); err != nil {
			return fmt.Errorf("platform: static root: %w", err)
		}
		fsys = os.DirFS(opts.Root)
	}

	prefix = "/" + strings.Trim(prefix, "/")
	var h http.Handler = http.StripPrefix(strings.TrimSuffix(prefix, "/"), http.FileServerFS(fsys))
	if opts.MaxAge > 0 {
		cache := fmt.Sprintf("public, max-age=%d", int(opts.MaxAge.Seconds()))
		files := h
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", cache)
			files.ServeHTTP(w, r)
		})
	}

	path := adapter.JoinPaths(prefix, "*filepath")
	a.router.Handle(http.MethodGet, path, h)
	a.router.Handle(http.MethodHead, path, h)
	return nil
}
