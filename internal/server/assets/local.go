package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// LocalUploader moves files into a directory served as static content.
type LocalUploader struct {
	dir     string
	baseURL string
	now     func() time.Time
}

func NewLocalUploader(dir, baseURL string) *LocalUploader {
	return &LocalUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (u *LocalUploader) Upload(ctx context.Context, localPath string) (string, error) {
	defer os.Remove(localPath)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	mtype, err := mimetype.DetectFile(localPath)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}

	key := objectKey(u.now().UTC(), mtype.Extension())
	dst := filepath.Join(u.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := moveFile(localPath, dst); err != nil {
		return "", err
	}

	return u.baseURL + "/" + key, nil
}

func (u *LocalUploader) Remove(_ context.Context, publicURL string) error {
	key, err := keyFromURL(u.baseURL, publicURL)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(u.dir, filepath.FromSlash(key))); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// moveFile renames src to dst, copying when they sit on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
