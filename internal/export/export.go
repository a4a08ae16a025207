// Package export publishes generated pages as static files.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bryan-buckman/spacetraveling/internal/model"
)

// Target receives exported files.
type Target interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
}

// PageLister lists the generated pages.
type PageLister interface {
	ListPages() ([]model.Page, error)
}

// Result counts the files written.
type Result struct {
	Pages  int
	Assets int
}

// Key maps a route to the object key serving it: "/" is "index.html",
// "/post/x" is "post/x/index.html" and paths with an extension keep it.
func Key(route string) string {
	clean := strings.Trim(path.Clean("/"+route), "/")
	if clean == "" {
		return "index.html"
	}
	if path.Ext(clean) != "" {
		return clean
	}
	return clean + "/index.html"
}

// Export writes every stored page with status 200 and every file of assets,
// placed under assetsPrefix. assets may be nil.
func Export(ctx context.Context, pages PageLister, assets fs.FS, assetsPrefix string, target Target, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result

	stored, err := pages.ListPages()
	if err != nil {
		return res, fmt.Errorf("list pages: %w", err)
	}
	for _, p := range stored {
		if p.Status != http.StatusOK {
			logger.Debug("skipping page", "path", p.Path, "status", p.Status)
			continue
		}
		key := Key(p.Path)
		if err := target.Put(ctx, key, bytes.NewReader(p.Body), p.ContentType); err != nil {
			return res, fmt.Errorf("put %s: %w", key, err)
		}
		res.Pages++
	}

	if assets != nil {
		err := fs.WalkDir(assets, ".", func(name string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			f, err := assets.Open(name)
			if err != nil {
				return err
			}
			defer f.Close()
			key := path.Join(assetsPrefix, name)
			contentType := mime.TypeByExtension(path.Ext(name))
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			if err := target.Put(ctx, key, f, contentType); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
			res.Assets++
			return nil
		})
		if err != nil {
			return res, err
		}
	}

	logger.Info("export complete", "pages", res.Pages, "assets", res.Assets)
	return res, nil
}

// DirTarget writes files under a local directory.
type DirTarget struct {
	Root string
}

// Put writes body to key under the root, creating parent directories.
func (d DirTarget) Put(ctx context.Context, key string, body io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !fs.ValidPath(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	dest := filepath.Join(d.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
