// Package assets moves uploaded images from the server's temporary upload
// directory to the place they are served from: an S3-compatible bucket or a
// local public directory.
package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Uploader publishes a local file and returns its public URL. The local file
// is removed whether or not the upload succeeds. Remove unpublishes a URL
// returned by Upload; removing something already gone is not an error.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
	Remove(ctx context.Context, publicURL string) error
}

// CheckImage rejects files whose content is not an image.
func CheckImage(path string) error {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect content type: %w", err)
	}
	if !strings.HasPrefix(m.String(), "image/") {
		return fmt.Errorf("%w: expected an image, got %s", common.ErrValidation, m.String())
	}
	return nil
}

// keyFromURL recovers the object key of a URL published under baseURL.
func keyFromURL(baseURL, publicURL string) (string, error) {
	key, ok := strings.CutPrefix(publicURL, baseURL+"/")
	if !ok || !strings.HasPrefix(key, "media/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q is not a published asset", common.ErrValidation, publicURL)
	}
	return key, nil
}

// objectKey returns a date-partitioned random key with the detected extension.
func objectKey(now time.Time, ext string) string {
	return fmt.Sprintf("media/%d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.New(), ext)
}
