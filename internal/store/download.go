package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Downloader delivers an exported file to the user under name and returns
// where it ended up.
type Downloader interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// DirDownloader saves files into a directory. Contents are staged in a
// temporary file that is renamed into place on success and removed otherwise,
// so a partially written export never appears under its final name.
type DirDownloader struct {
	Dir string
}

func NewDirDownloader(dir string) *DirDownloader {
	return &DirDownloader{Dir: dir}
}

func (d *DirDownloader) Save(ctx context.Context, name string, r io.Reader) (path string, err error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure download dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	path = filepath.Join(dir, name)
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move %s into place: %w", name, err)
	}
	return path, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
