package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leon37/vartoolbox/internal/api/controller"
)

func newTestRouter(t *testing.T, imageDir string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, "server-key", "image-key", imageDir, controller.NewChatController(nil, nil, nil))
	return r
}

func doRequest(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthIsPublic(t *testing.T) {
	r := newTestRouter(t, t.TempDir())
	w := doRequest(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestChatCompletionsRequiresKey(t *testing.T) {
	r := newTestRouter(t, t.TempDir())

	w := doRequest(r, http.MethodPost, "/v1/chat/completions", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/chat/completions",
		map[string]string{"Authorization": "Bearer wrong-key"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestImageAccessPathValidation(t *testing.T) {
	imageDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(imageDir, "柴郡表情包"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(imageDir, "柴郡表情包", "a.png"), []byte("png-bytes"), 0o644))
	r := newTestRouter(t, imageDir)

	// 路径段不是 pw= 开头
	w := doRequest(r, http.MethodGet, "/oops/images/柴郡表情包/a.png", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 密码错误
	w = doRequest(r, http.MethodGet, "/pw=wrong/images/柴郡表情包/a.png", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 密码正确，直出文件
	w = doRequest(r, http.MethodGet, "/pw=image-key/images/柴郡表情包/a.png", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
}
