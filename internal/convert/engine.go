package convert

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"restack/internal/archive"
	llmclient "restack/internal/llm/client"
	"restack/internal/llmtool"
	"restack/internal/scan"
	"restack/internal/workspace"
)

// Engine runs conversion requests in the configured mode. One engine serves
// all requests; each request gets its own scratch workspace.
type Engine struct {
	client llmclient.LLMClient
	ws     *workspace.Manager
	mode   string
	log    *logrus.Entry
}

// NewEngine builds an engine. mode must be ModeWholeProject or ModePerFile.
func NewEngine(client llmclient.LLMClient, ws *workspace.Manager, mode string, log *logrus.Entry) (*Engine, error) {
	switch mode {
	case ModeWholeProject, ModePerFile:
	default:
		return nil, fmt.Errorf("convert: unknown mode %q", mode)
	}
	if client == nil {
		return nil, fmt.Errorf("convert: client is required")
	}
	if ws == nil {
		return nil, fmt.Errorf("convert: workspace manager is required")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{client: client, ws: ws, mode: mode, log: log}, nil
}

// Mode reports the configured conversion mode.
func (e *Engine) Mode() string { return e.mode }

// Convert runs one request end to end: unpack, discover, prompt, invoke,
// parse, repack. The scratch workspace is removed on every exit path.
func (e *Engine) Convert(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ws, err := e.ws.Acquire()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			e.log.WithError(err).Warn("workspace cleanup failed")
		}
	}()

	log := e.log.WithFields(logrus.Fields{
		"mode":      e.mode,
		"workspace": filepath.Base(ws.Dir()),
		"model":     e.client.Name(),
	})

	if err := archive.Unpack(req.Archive, ws.Dir()); err != nil {
		return nil, err
	}

	files, err := scan.FilesWithExtensions(ws.Dir(), AllowedExtensions, scan.Options{})
	if err != nil {
		return nil, err
	}
	log.WithField("files", len(files)).Info("discovered source files")

	switch e.mode {
	case ModePerFile:
		return e.convertPerFile(ctx, log, ws, req, files)
	default:
		return e.convertWholeProject(ctx, log, ws, req, files)
	}
}

// convertWholeProject sends the entire filtered tree as one prompt and
// rebuilds the project from the model's delimited blocks. Any invocation or
// parse failure is fatal: no archive is produced.
func (e *Engine) convertWholeProject(ctx context.Context, log *logrus.Entry, ws *workspace.Workspace, req Request, files []string) (*Result, error) {
	entries := make([]llmtool.ProjectEntry, 0, len(files))
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(ws.Dir(), filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("convert: read %s: %w", rel, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}
		entries = append(entries, llmtool.ProjectEntry{Path: rel, Content: content})
	}
	if len(entries) == 0 {
		return nil, ErrNoSourceFiles
	}

	prompt := llmtool.ProjectPrompt(req.TargetStack, entries)
	if tokens := e.client.CountTokens(prompt); tokens > e.client.TokenCapacity() {
		log.WithFields(logrus.Fields{
			"tokens":   tokens,
			"capacity": e.client.TokenCapacity(),
		}).Warn("prompt exceeds model token capacity")
	}

	response, err := e.client.GenerateText(ctx, prompt)
	if err != nil {
		return nil, &InvocationError{Err: err}
	}

	converted, err := llmtool.ParseProjectBlocks(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparsableResponse, err)
	}
	if len(converted) == 0 {
		return nil, ErrUnparsableResponse
	}

	out := make([]archive.Entry, 0, len(converted))
	for _, f := range converted {
		rel, ok := archive.CleanEntryPath(f.Path)
		if !ok {
			log.WithField("path", f.Path).Warn("skipping unsafe model-supplied path")
			continue
		}
		out = append(out, archive.Entry{Path: rel, Data: []byte(f.Content)})
	}
	if len(out) == 0 {
		return nil, ErrUnparsableResponse
	}

	buf, err := archive.Pack(out)
	if err != nil {
		return nil, err
	}
	log.WithField("converted", len(out)).Info("whole-project conversion complete")
	return &Result{Archive: buf, SourceFiles: len(entries), ConvertedFiles: len(out)}, nil
}

// convertPerFile overwrites each filtered file with its converted text, one
// sequential model call per file. A failed call keeps the original content
// and processing continues: the request degrades instead of failing.
func (e *Engine) convertPerFile(ctx context.Context, log *logrus.Entry, ws *workspace.Workspace, req Request, files []string) (*Result, error) {
	sent := 0
	converted := 0
	for _, rel := range files {
		abs := filepath.Join(ws.Dir(), filepath.FromSlash(rel))
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("convert: read %s: %w", rel, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}
		sent++

		prompt := llmtool.FilePrompt(req.TargetStack, path.Base(rel), content)
		response, err := e.client.GenerateText(ctx, prompt)
		if err != nil {
			log.WithField("file", rel).WithError(err).Warn("model call failed, keeping original content")
			continue
		}
		payload := llmtool.ExtractFilePayload(response)
		if !payload.Fenced {
			log.WithField("file", rel).Debug("no fence in response, using raw text")
		}
		if err := os.WriteFile(abs, []byte(payload.Content), 0o644); err != nil {
			return nil, fmt.Errorf("convert: write %s: %w", rel, err)
		}
		converted++
	}
	if sent == 0 {
		return nil, ErrNoSourceFiles
	}

	buf, err := archive.PackDir(ws.Dir())
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"sent": sent, "converted": converted}).Info("per-file conversion complete")
	return &Result{Archive: buf, SourceFiles: sent, ConvertedFiles: converted}, nil
}
