package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leon37/vartoolbox/internal/config"
	"github.com/leon37/vartoolbox/internal/service"
)

type noFestival struct{}

func (noFestival) Festival(time.Time) string { return "" }

type noWeather struct{}

func (noWeather) Current() string { return "" }

type noMedia struct{}

func (noMedia) Lookup(string) (string, bool) { return "", false }

type noDiary struct{}

func (noDiary) Render(string) string { return "" }

// fakeForwarder 记录送达上游的请求，按预置内容回放响应
type fakeForwarder struct {
	body      []byte
	userAgent string
	accept    string

	status int
	header http.Header
	resp   string
	err    error
}

func (f *fakeForwarder) Forward(_ context.Context, body []byte, userAgent, accept string) (*http.Response, error) {
	f.body = body
	f.userAgent = userAgent
	f.accept = accept
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Header:     f.header,
		Body:       io.NopCloser(strings.NewReader(f.resp)),
	}, nil
}

func newTestController(t *testing.T, fwd *fakeForwarder, diaryDir string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	resolver := service.NewTemplateResolver(&config.Config{}, noFestival{}, noWeather{}, noMedia{}, noDiary{},
		time.Now, time.UTC)
	ctrl := NewChatController(service.NewPipeline(resolver, nil, false), fwd, service.NewDiaryWriter(diaryDir))

	r := gin.New()
	r.POST("/v1/chat/completions", ctrl.Proxy)
	return r
}

const proxySSEBody = `data: {"choices":[{"delta":{"content":"好的主人"}}]}

data: {"choices":[{"delta":{"content":"<<<DailyNoteStart>>>\nMaid: 小夜\nDate: 2025.6.1\nContent: 今天试通了代理\n<<<DailyNoteEnd>>>"}}]}

data: [DONE]

`

func TestProxyRelaysBytesUnmodified(t *testing.T) {
	fwd := &fakeForwarder{
		status: http.StatusOK,
		header: http.Header{
			"Content-Type":   {"text/event-stream"},
			"X-Upstream-Tag": {"abc"},
			"Content-Length": {"9999"},
		},
		resp: proxySSEBody,
	}
	r := newTestController(t, fwd, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"m","stream":true,"messages":[{"role":"user","content":"你好"}]}`))
	req.Header.Set("User-Agent", "TestAgent/1.0")
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, proxySSEBody, w.Body.String(), "响应字节逐字透传")
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "abc", w.Header().Get("X-Upstream-Tag"))

	assert.Equal(t, "TestAgent/1.0", fwd.userAgent)
	assert.Equal(t, "text/event-stream", fwd.accept)

	var forwarded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(fwd.body, &forwarded))
	assert.JSONEq(t, `true`, string(forwarded["stream"]), "messages 以外的字段保留")
}

func TestProxyExtractsDiaryInBackground(t *testing.T) {
	fwd := &fakeForwarder{
		status: http.StatusOK,
		header: http.Header{"Content-Type": {"text/event-stream"}},
		resp:   proxySSEBody,
	}
	diaryDir := t.TempDir()
	r := newTestController(t, fwd, diaryDir)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"写日记"}]}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	target := filepath.Join(diaryDir, "小夜", "2025", "6", "1.txt")
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(target)
		return err == nil && strings.Contains(string(data), "今天试通了代理")
	}, 2*time.Second, 20*time.Millisecond, "日记在后台落盘，不阻塞响应")
}

func TestProxyUpstreamStatusPassthrough(t *testing.T) {
	fwd := &fakeForwarder{
		status: http.StatusBadGateway,
		header: http.Header{"Content-Type": {"application/json"}},
		resp:   `{"error":{"message":"upstream down"}}`,
	}
	r := newTestController(t, fwd, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code, "上游错误码也原样透传")
	assert.Equal(t, fwd.resp, w.Body.String())
}

func TestProxyForwardFailure(t *testing.T) {
	fwd := &fakeForwarder{err: io.ErrUnexpectedEOF}
	r := newTestController(t, fwd, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")
}

func TestProxyBadRequestBody(t *testing.T) {
	fwd := &fakeForwarder{}
	r := newTestController(t, fwd, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Nil(t, fwd.body, "请求体解析失败时不触发转发")
}
