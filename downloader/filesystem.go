package downloader

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Reads file:// URLs and plain paths from local disk. Anything with
// an http or https scheme goes to Remote.
//
// Relative paths are resolved against Dir, if set.
type Filesystem struct {
	Dir    string
	Remote Downloader
}

func NewFilesystem(dir string) *Filesystem {
	return &Filesystem{
		Dir:    dir,
		Remote: HTTP{},
	}
}

func (f *Filesystem) Get(
	ctx context.Context,
	rawURL string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {

	path, local, err := f.localPath(rawURL)
	if err != nil {
		return nil, err
	}
	if !local {
		return f.Remote.Get(ctx, rawURL, headers, options)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening: %w", err)
	}
	defer fh.Close()

	var reader io.Reader = fh
	if options.MaxSize > 0 {
		reader = io.LimitReader(fh, int64(options.MaxSize)+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if options.MaxSize > 0 && len(body) > options.MaxSize {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", path, ErrTooLarge, options.MaxSize)
	}

	return body, nil
}

func (f *Filesystem) localPath(rawURL string) (string, bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// A plain path. Single letter schemes are Windows
		// drive letters.
		return f.resolve(rawURL), true, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return "", false, fmt.Errorf("file URL %s has remote host", rawURL)
		}
		return f.resolve(u.Path), true, nil
	case "http", "https":
		return "", false, nil
	}

	return "", false, fmt.Errorf("unsupported scheme %q", u.Scheme)
}

func (f *Filesystem) resolve(path string) string {
	if f.Dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.Dir, path)
}
