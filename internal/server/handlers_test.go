package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restack/internal/archive"
	"restack/internal/convert"
	"restack/internal/workspace"
)

type fakeClient struct {
	respond func(prompt string) (string, error)
}

func (f *fakeClient) Name() string                { return "fake" }
func (f *fakeClient) Close() error                { return nil }
func (f *fakeClient) CountTokens(text string) int { return len(strings.Fields(text)) }
func (f *fakeClient) TokenCapacity() int          { return 1 << 20 }
func (f *fakeClient) GenerateText(_ context.Context, prompt string) (string, error) {
	return f.respond(prompt)
}

type fixture struct {
	router http.Handler
	wsRoot string
}

func newFixture(t *testing.T, mode string, respond func(string) (string, error), credential func() error) fixture {
	t.Helper()
	wsRoot := t.TempDir()
	ws, err := workspace.NewManager(wsRoot)
	require.NoError(t, err)
	eng, err := convert.NewEngine(&fakeClient{respond: respond}, ws, mode, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	router := NewRouter(Options{
		Engine:          eng,
		CredentialCheck: credential,
		MaxUploadBytes:  32 << 20,
		Log:             logrus.NewEntry(logrus.New()),
	})
	return fixture{router: router, wsRoot: wsRoot}
}

func multipartUpload(t *testing.T, filename string, zipData []byte, targetStack string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if targetStack != "" {
		require.NoError(t, mw.WriteField("target_stack", targetStack))
	}
	if zipData != nil {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="project"; filename="`+filename+`"`)
		hdr.Set("Content-Type", "application/zip")
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(zipData)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postConvert(t *testing.T, router http.Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func zipOf(t *testing.T, entries ...archive.Entry) []byte {
	t.Helper()
	data, err := archive.Pack(entries)
	require.NoError(t, err)
	return data
}

func TestConvertWholeProjectSuccess(t *testing.T) {
	fx := newFixture(t, convert.ModeWholeProject, func(prompt string) (string, error) {
		return "// START_FILE: src/App.vue\n" +
			"```vue\n" +
			"<template><div/></template>\n" +
			"```\n" +
			"// END_FILE: src/App.vue\n", nil
	}, nil)

	upload := zipOf(t, archive.Entry{Path: "src/App.jsx", Data: []byte("export default function App() {}")})
	body, ct := multipartUpload(t, "myapp.zip", upload, "Vue")
	rec := postConvert(t, fx.router, body, ct)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="myapp-converted.zip"`, rec.Header().Get("Content-Disposition"))

	dest := t.TempDir()
	require.NoError(t, archive.Unpack(rec.Body.Bytes(), dest))
	got, err := os.ReadFile(dest + "/src/App.vue")
	require.NoError(t, err)
	assert.Equal(t, "<template><div/></template>", string(got))
}

func TestConvertUnparsableResponse(t *testing.T) {
	fx := newFixture(t, convert.ModeWholeProject, func(string) (string, error) {
		return "no delimiters anywhere", nil
	}, nil)

	upload := zipOf(t, archive.Entry{Path: "src/App.jsx", Data: []byte("x")})
	body, ct := multipartUpload(t, "myapp.zip", upload, "Vue")
	rec := postConvert(t, fx.router, body, ct)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, errorBody(t, rec), "could not be parsed")
}

func TestConvertPerFilePartialFailure(t *testing.T) {
	fx := newFixture(t, convert.ModePerFile, func(prompt string) (string, error) {
		if strings.Contains(prompt, "Broken.jsx") {
			return "", errors.New("boom")
		}
		return "```\nconverted\n```", nil
	}, nil)

	original := "original broken content"
	upload := zipOf(t,
		archive.Entry{Path: "src/Broken.jsx", Data: []byte(original)},
		archive.Entry{Path: "src/Fine.jsx", Data: []byte("fine content")},
	)
	body, ct := multipartUpload(t, "app.zip", upload, "Vue")
	rec := postConvert(t, fx.router, body, ct)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dest := t.TempDir()
	require.NoError(t, archive.Unpack(rec.Body.Bytes(), dest))
	broken, err := os.ReadFile(dest + "/src/Broken.jsx")
	require.NoError(t, err)
	assert.Equal(t, original, string(broken))
	fine, err := os.ReadFile(dest + "/src/Fine.jsx")
	require.NoError(t, err)
	assert.Equal(t, "converted", string(fine))
}

func TestConvertMissingTargetStack(t *testing.T) {
	fx := newFixture(t, convert.ModeWholeProject, func(string) (string, error) {
		t.Fatal("model must not be called")
		return "", nil
	}, nil)

	upload := zipOf(t, archive.Entry{Path: "src/App.jsx", Data: []byte("x")})
	body, ct := multipartUpload(t, "app.zip", upload, "")
	rec := postConvert(t, fx.router, body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "target_stack")

	// Validation failed before any workspace was created.
	items, err := os.ReadDir(fx.wsRoot)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestConvertMissingProjectPart(t *testing.T) {
	fx := newFixture(t, convert.ModeWholeProject, func(string) (string, error) {
		return "", nil
	}, nil)

	body, ct := multipartUpload(t, "", nil, "Vue")
	rec := postConvert(t, fx.router, body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "project archive")
}

func TestConvertUnconfiguredCredential(t *testing.T) {
	fx := newFixture(t, convert.ModeWholeProject, func(string) (string, error) {
		t.Fatal("model must not be called")
		return "", nil
	}, func() error { return errors.New("GEMINI_API_KEY is not set") })

	upload := zipOf(t, archive.Entry{Path: "src/App.jsx", Data: []byte("x")})
	body, ct := multipartUpload(t, "app.zip", upload, "Vue")
	rec := postConvert(t, fx.router, body, ct)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, errorBody(t, rec), "credential")

	items, err := os.ReadDir(fx.wsRoot)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestConvertCorruptArchive(t *testing.T) {
	fx := newFixture(t, convert.ModeWholeProject, func(string) (string, error) {
		return "", nil
	}, nil)

	body, ct := multipartUpload(t, "app.zip", []byte("definitely not a zip"), "Vue")
	rec := postConvert(t, fx.router, body, ct)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, errorBody(t, rec), "could not be read")
}

func TestConvertModelFailureIsBadGateway(t *testing.T) {
	fx := newFixture(t, convert.ModeWholeProject, func(string) (string, error) {
		return "", errors.New("upstream quota exhausted")
	}, nil)

	upload := zipOf(t, archive.Entry{Path: "src/App.jsx", Data: []byte("x")})
	body, ct := multipartUpload(t, "app.zip", upload, "Vue")
	rec := postConvert(t, fx.router, body, ct)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, errorBody(t, rec), "model invocation failed")
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t, convert.ModePerFile, func(string) (string, error) { return "", nil }, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, convert.ModePerFile, body["mode"])
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "myapp-converted.zip", downloadName("myapp.zip"))
	assert.Equal(t, "myapp-converted.zip", downloadName(`C:\uploads\myapp.zip`))
	assert.Equal(t, "project-converted.zip", downloadName(""))
}
