// Package uploads is the file sink behind delivery attachments.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/config"
)

// URLPrefix is where stored files are served from.
const URLPrefix = "/uploads"

const formField = "file"

type Handler struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

func NewHandler(cfg config.Uploads, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Handler{dir: cfg.Dir, maxBytes: cfg.MaxBytes, logger: logger}, nil
}

func (h *Handler) Dir() string { return h.dir }

type Result struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// sanitize keeps the base name of the client supplied file name.
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0:
			return -1
		case r < 0x20:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// Upload - stores one multipart file and returns its reference
func (h *Handler) Upload(c echo.Context) error {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, h.maxBytes+1<<20)
	fh, err := c.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.InvalidArg(fmt.Sprintf("file exceeds %d bytes", h.maxBytes))
		}
		return apperr.InvalidArg("multipart field \"file\" is required")
	}
	if fh.Size > h.maxBytes {
		return apperr.InvalidArg(fmt.Sprintf("file exceeds %d bytes", h.maxBytes))
	}

	src, err := fh.Open()
	if err != nil {
		return apperr.Internal("failed to read upload", err)
	}
	defer src.Close()

	name := sanitize(fh.Filename)
	stored := uuid.NewString() + "-" + name
	dst, err := os.OpenFile(filepath.Join(h.dir, stored), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return apperr.Internal("failed to store upload", err)
	}
	n, err := io.Copy(dst, io.LimitReader(src, h.maxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > h.maxBytes {
		err = apperr.InvalidArg(fmt.Sprintf("file exceeds %d bytes", h.maxBytes))
	}
	if err != nil {
		if rmErr := os.Remove(filepath.Join(h.dir, stored)); rmErr != nil {
			h.logger.Warn("removing partial upload", "file", stored, "err", rmErr)
		}
		if apperr.CodeOf(err) == apperr.CodeInvalidArgument {
			return err
		}
		return apperr.Internal("failed to store upload", err)
	}

	h.logger.Info("file uploaded", "file", stored, "size", n)
	return c.JSON(http.StatusCreated, Result{
		FilePath: URLPrefix + "/" + stored,
		FileName: name,
		FileSize: n,
	})
}
