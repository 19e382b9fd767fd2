package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"restack/internal/archive"
	"restack/internal/convert"
)

// Converter is the engine surface the HTTP boundary needs.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) (*convert.Result, error)
	Mode() string
}

type convertHandler struct {
	engine          Converter
	credentialCheck func() error
	maxUploadBytes  int64
	log             *logrus.Entry
}

func (h *convertHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"mode":   h.engine.Mode(),
	})
}

// acceptedZipTypes are the content types browsers attach to zip uploads.
var acceptedZipTypes = map[string]bool{
	"":                             true, // some clients omit the part type
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/octet-stream":     true,
}

// handleConvert is the one conversion endpoint. All validation runs before a
// workspace is created; everything after that is the engine's job, and the
// engine guarantees scratch cleanup on every path.
func (h *convertHandler) handleConvert(w http.ResponseWriter, r *http.Request) {
	if h.credentialCheck != nil {
		if err := h.credentialCheck(); err != nil {
			h.httpError(w, http.StatusInternalServerError, "model credential is not configured", err)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.httpError(w, http.StatusBadRequest, "invalid multipart upload", err)
		return
	}

	targetStack := strings.TrimSpace(r.FormValue("target_stack"))
	if targetStack == "" {
		h.httpError(w, http.StatusBadRequest, "target_stack field is required", nil)
		return
	}

	file, header, err := r.FormFile("project")
	if err != nil {
		h.httpError(w, http.StatusBadRequest, "project archive upload is required", err)
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); !acceptedZipTypes[ct] {
		h.httpError(w, http.StatusBadRequest, fmt.Sprintf("unsupported upload content type %q", ct), nil)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.httpError(w, http.StatusBadRequest, "failed to read upload", err)
		return
	}
	if len(data) == 0 {
		h.httpError(w, http.StatusBadRequest, "project archive is empty", nil)
		return
	}

	res, err := h.engine.Convert(r.Context(), convert.Request{
		Archive:     data,
		TargetStack: targetStack,
	})
	if err != nil {
		h.convertError(w, err)
		return
	}

	name := downloadName(header.Filename)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Archive)
}

// convertError maps the engine's error taxonomy onto HTTP statuses. No
// partial archive is ever written on a failure path.
func (h *convertHandler) convertError(w http.ResponseWriter, err error) {
	var corrupt *archive.CorruptError
	var invocation *convert.InvocationError
	switch {
	case errors.As(err, &corrupt):
		h.httpError(w, http.StatusInternalServerError, "uploaded archive could not be read", err)
	case errors.Is(err, convert.ErrNoSourceFiles):
		h.httpError(w, http.StatusBadRequest, "archive contains no convertible source files", err)
	case errors.As(err, &invocation):
		h.httpError(w, http.StatusBadGateway, "model invocation failed", err)
	case errors.Is(err, convert.ErrUnparsableResponse):
		h.httpError(w, http.StatusInternalServerError, "model response could not be parsed into project files", err)
	default:
		h.httpError(w, http.StatusInternalServerError, "conversion failed", err)
	}
}

// httpError sends the structured JSON error body and keeps the detailed
// cause in the server log only.
func (h *convertHandler) httpError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		h.log.WithError(err).WithField("status", status).Warn(message)
	} else {
		h.log.WithField("status", status).Warn(message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// downloadName derives the attachment filename from the uploaded one.
func downloadName(upload string) string {
	base := path.Base(strings.ReplaceAll(upload, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "project"
	}
	return base + "-converted.zip"
}
