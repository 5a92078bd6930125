package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/server/assets"
)

// saveUpload stores the multipart file field in the temporary upload
// directory and returns its path. An absent field yields "".
func (h *handler) saveUpload(c *gin.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: expected multipart form", common.ErrValidation, field)
	}
	if h.opts.MaxUploadSize > 0 && fh.Size > h.opts.MaxUploadSize {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", common.ErrValidation, field, h.opts.MaxUploadSize)
	}

	if err := os.MkdirAll(h.opts.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(h.opts.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(filepath.Base(fh.Filename))))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", fmt.Errorf("save %s: %w", field, err)
	}

	if err := assets.CheckImage(dst); err != nil {
		removeFiles(dst)
		return "", fmt.Errorf("%w (%s)", err, field)
	}
	return dst, nil
}

func removeFiles(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}
