package uploads

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/config"
)

func multipartRequest(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHandler(config.Uploads{Dir: dir, MaxBytes: 64}, nil)
	require.NoError(t, err)
	e := echo.New()

	t.Run("stores file with unique prefix", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(multipartRequest(t, "file", "../../etc/report.pdf", []byte("quarterly numbers")), rec)
		require.NoError(t, h.Upload(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var res Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "report.pdf", res.FileName)
		assert.EqualValues(t, len("quarterly numbers"), res.FileSize)
		assert.True(t, strings.HasPrefix(res.FilePath, URLPrefix+"/"))
		assert.True(t, strings.HasSuffix(res.FilePath, "-report.pdf"))

		stored, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(res.FilePath, URLPrefix+"/")))
		require.NoError(t, err)
		assert.Equal(t, "quarterly numbers", string(stored))
	})

	t.Run("too large", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(multipartRequest(t, "file", "big.bin", bytes.Repeat([]byte("x"), 65)), rec)
		err := h.Upload(c)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	})

	t.Run("missing field", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(multipartRequest(t, "attachment", "a.txt", []byte("a")), rec)
		assert.ErrorIs(t, h.Upload(c), apperr.ErrInvalidArgument)
	})
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"report.pdf":          "report.pdf",
		"../secret.txt":       "secret.txt",
		`C:\Users\a\doc.docx`: "doc.docx",
		"..":                  "file",
		"":                    "file",
		"tab\tname.txt":       "tab_name.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitize(in), in)
	}
}
