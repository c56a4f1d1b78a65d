package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skryldev/image-api/accesslog"
	"github.com/Skryldev/image-api/adapters/decoder"
	"github.com/Skryldev/image-api/adapters/encoder"
	"github.com/Skryldev/image-api/adapters/storage"
	"github.com/Skryldev/image-api/auth"
	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
	"github.com/Skryldev/image-api/handler"
	"github.com/Skryldev/image-api/metrics"
	"github.com/Skryldev/image-api/operations"
	"github.com/Skryldev/image-api/pipeline"
	"github.com/Skryldev/image-api/server"
)

// ── harness ───────────────────────────────────────────────────────────────────

type harness struct {
	router *gin.Engine
	logs   *bytes.Buffer
}

func newHarness(t *testing.T, tweak func(*server.Deps)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := auth.OpenDatabase(fmt.Sprintf("file:server-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	require.NoError(t, err)
	users, err := auth.NewGormStore(db)
	require.NoError(t, err)
	tokens, err := auth.NewTokenManager("server-secret", time.Hour, "image-api")
	require.NoError(t, err)
	accounts := auth.NewService(users, tokens, auth.NewMemoryRevoker(), bcrypt.MinCost)

	codecs := core.NewCodecRegistry()
	decoder.Register(codecs)
	encoder.Register(codecs, 90)
	ops := core.NewOperationRegistry()
	operations.Register(ops, operations.NewEngine(codecs, 90))

	logs := &bytes.Buffer{}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	chain := handler.Standard(ops, accounts, accesslog.NewWriter(logs), handler.WithAppLogger(quiet))

	store, err := storage.NewLocal(t.TempDir(), 0)
	require.NoError(t, err)
	collector, err := metrics.New("test", nil)
	require.NoError(t, err)

	deps := server.Deps{
		Chain:     chain,
		Runner:    pipeline.NewRunner(chain),
		Validator: pipeline.NewValidator(pipeline.DefaultMaxDimension),
		Accounts:  accounts,
		Storage:   store,
		Metrics:   collector,
		Logger:    quiet,
	}
	if tweak != nil {
		tweak(&deps)
	}
	return &harness{router: server.New(deps), logs: logs}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) postJSON(path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return h.do(req)
}

func (h *harness) token(t *testing.T) string {
	t.Helper()
	creds := map[string]string{"email": "dev@example.com", "password": "s3cret"}
	require.Equal(t, http.StatusCreated, h.postJSON("/auth/register", creds).Code)
	w := h.postJSON("/auth/login", creds)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct{ Token string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func upload(t *testing.T, path, token string, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "input.bin")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: 90, B: uint8(y * 255 / h), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func dims(t *testing.T, data []byte) (int, int, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, format
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
	Step      *int   `json:"step"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var out errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	assert.NotEmpty(t, out.Timestamp)
	return out
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestAuthRoutes(t *testing.T) {
	h := newHarness(t, nil)
	token := h.token(t)

	w := h.postJSON("/auth/register", map[string]string{"email": "dev@example.com", "password": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EMAIL_EXISTS", decodeError(t, w).Code)

	w = h.postJSON("/auth/login", map[string]string{"email": "dev@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, w).Code)

	w = h.postJSON("/auth/login", map[string]string{"email": "dev@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FIELDS", decodeError(t, w).Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, h.do(req).Code)

	w = h.do(upload(t, "/images/rotate", token, newJPEG(t, 10, 10), map[string]string{"angle": "90"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeError(t, w).Code)
}

func TestSingleOperation(t *testing.T) {
	h := newHarness(t, nil)
	token := h.token(t)

	w := h.do(upload(t, "/images/rotate", token, newJPEG(t, 100, 50), map[string]string{"angle": "90"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="processed-image.jpg"`, w.Header().Get("Content-Disposition"))
	width, height, _ := dims(t, w.Body.Bytes())
	assert.Equal(t, 50, width)
	assert.Equal(t, 100, height)

	w = h.do(upload(t, "/images/format", token, newJPEG(t, 20, 20), map[string]string{"format": "png"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, _, format := dims(t, w.Body.Bytes())
	assert.Equal(t, "png", format)

	assert.Contains(t, h.logs.String(), `"user":"dev@example.com"`)
	assert.Contains(t, h.logs.String(), `"endpoint":"/images/rotate"`)
}

func TestMissingTokenLogsError(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(upload(t, "/images/filter", "", newJPEG(t, 10, 10), map[string]string{"filter": "blur"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_TOKEN", decodeError(t, w).Code)
	assert.Contains(t, h.logs.String(), `"result":"error"`)
	assert.NotContains(t, h.logs.String(), `"result":"success"`)
}

func TestUploadAndParamErrors(t *testing.T) {
	h := newHarness(t, func(d *server.Deps) { d.MaxUploadBytes = 4096 })

	cases := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{"missing image", upload(t, "/images/resize", "", nil, map[string]string{"width": "10", "height": "10"}), 400, "MISSING_IMAGE"},
		{"unsupported media", upload(t, "/images/resize", "", []byte("just some text"), nil), 415, "UNSUPPORTED_MEDIA_TYPE"},
		{"too large", upload(t, "/images/resize", "", bytes.Repeat([]byte{0xff}, 5000), nil), 413, "PAYLOAD_TOO_LARGE"},
		{"missing params", upload(t, "/images/resize", "", newJPEG(t, 8, 8), map[string]string{"width": "10"}), 400, "MISSING_PARAMS"},
		{"invalid params before auth", upload(t, "/images/rotate", "", newJPEG(t, 8, 8), map[string]string{"angle": "45"}), 400, "INVALID_PARAMS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.do(tc.req)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w).Code)
		})
	}
	assert.Empty(t, h.logs.String(), "rejected uploads never reach the chain")
}

func TestProcessAndResult(t *testing.T) {
	h := newHarness(t, nil)
	token := h.token(t)

	w := h.do(upload(t, "/images/process", token, newJPEG(t, 100, 50), map[string]string{
		"pipeline": `[{"op":"rotate","angle":90},{"op":"format","format":"png"}]`,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="processed-image.png"`, w.Header().Get("Content-Disposition"))
	width, height, _ := dims(t, w.Body.Bytes())
	assert.Equal(t, 50, width)
	assert.Equal(t, 100, height)
	assert.Equal(t, 2, strings.Count(h.logs.String(), `"result":"success"`))

	id := w.Header().Get("X-Result-Id")
	require.True(t, strings.HasSuffix(id, ".png"), id)

	req := httptest.NewRequest(http.MethodGet, "/images/results/"+id, nil)
	assert.Equal(t, http.StatusUnauthorized, h.do(req).Code)

	req.Header.Set("Authorization", "Bearer "+token)
	got := h.do(req)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "image/png", got.Header().Get("Content-Type"))
	assert.Equal(t, w.Body.Bytes(), got.Body.Bytes())

	req = httptest.NewRequest(http.MethodGet, "/images/results/not-an-id.png", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusNotFound, h.do(req).Code)
}

func TestDeleteResult(t *testing.T) {
	h := newHarness(t, nil)
	token := h.token(t)

	w := h.do(upload(t, "/images/process", token, newJPEG(t, 8, 8), map[string]string{
		"pipeline": `[{"op":"rotate","angle":180}]`,
	}))
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get("X-Result-Id")
	require.NotEmpty(t, id)

	del := func(auth bool) int {
		req := httptest.NewRequest(http.MethodDelete, "/images/results/"+id, nil)
		if auth {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return h.do(req).Code
	}
	assert.Equal(t, http.StatusUnauthorized, del(false))
	assert.Equal(t, http.StatusNoContent, del(true))
	assert.Equal(t, http.StatusNotFound, del(true))

	req := httptest.NewRequest(http.MethodGet, "/images/results/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusNotFound, h.do(req).Code)
}

// flakyStore fails the first failures Put calls with err.
type flakyStore struct {
	core.StorageAdapter
	err      error
	failures int
	puts     int
}

func (f *flakyStore) Put(ctx context.Context, key core.StorageKey, r io.Reader, meta map[string]string) error {
	f.puts++
	if f.puts <= f.failures {
		return f.err
	}
	return f.StorageAdapter.Put(ctx, key, r, meta)
}

func TestArchiveRetry(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		failures int
		puts     int
		archived bool
	}{
		{"transient failure retried", apperrors.Transient("s3.put", apperrors.ErrStorageUnavailable), 1, 2, true},
		{"retried once only", apperrors.Transient("s3.put", apperrors.ErrStorageUnavailable), 2, 2, false},
		{"permanent failure", apperrors.New(apperrors.CategoryStorage, "local.put", errors.New("read-only")), 1, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, err := storage.NewLocal(t.TempDir(), 0)
			require.NoError(t, err)
			store := &flakyStore{StorageAdapter: local, err: tt.err, failures: tt.failures}
			h := newHarness(t, func(d *server.Deps) { d.Storage = store })
			token := h.token(t)

			w := h.do(upload(t, "/images/process", token, newJPEG(t, 8, 8), map[string]string{
				"pipeline": `[{"op":"filter","filter":"blur"}]`,
			}))
			require.Equal(t, http.StatusOK, w.Code, "archive failures never fail the request")
			assert.Equal(t, tt.puts, store.puts)
			assert.Equal(t, tt.archived, w.Header().Get("X-Result-Id") != "")
		})
	}
}

func TestProcessRejections(t *testing.T) {
	h := newHarness(t, nil)
	token := h.token(t)
	img := newJPEG(t, 16, 16)

	w := h.do(upload(t, "/images/process", token, img, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_PIPELINE", decodeError(t, w).Code)

	w = h.do(upload(t, "/images/process", token, img, map[string]string{
		"pipeline": `[{"op":"format","format":"png"},{"op":"rotate","angle":90}]`,
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "INVALID_PIPELINE", body.Code)
	assert.Equal(t, "'format' must be the last step of the pipeline", body.Error)

	w = h.do(upload(t, "/images/process", token, img, map[string]string{
		"pipeline": `[{"op":"rotate","angle":90},{"op":"crop"}]`,
	}))
	body = decodeError(t, w)
	assert.Equal(t, "UNKNOWN_OPERATION", body.Code)
	require.NotNil(t, body.Step)
	assert.Equal(t, 1, *body.Step)

	assert.Empty(t, h.logs.String(), "invalid pipelines run no steps")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	w := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestStorageDisabled(t *testing.T) {
	h := newHarness(t, func(d *server.Deps) { d.Storage = nil })
	token := h.token(t)

	w := h.do(upload(t, "/images/process", token, newJPEG(t, 8, 8), map[string]string{
		"pipeline": `[{"op":"filter","filter":"grayscale"}]`,
	}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Result-Id"))
	assert.Equal(t, http.StatusNotFound, h.do(httptest.NewRequest(http.MethodGet, "/images/results/x.png", nil)).Code)
}
