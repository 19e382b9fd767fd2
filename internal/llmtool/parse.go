package llmtool

import (
	"fmt"
	"strings"
)

// ConvertedFile is one file recovered from a whole-project model response.
// The path is model-supplied and must be sanitized before hitting a
// filesystem or archive.
type ConvertedFile struct {
	Path    string
	Content string
}

// MalformedResponseError reports a structurally broken block sequence: an
// end marker whose path does not match the open block, or a start marker
// inside an open block.
type MalformedResponseError struct {
	OpenPath   string
	MarkerPath string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("llmtool: malformed response: block %q interrupted by marker for %q", e.OpenPath, e.MarkerPath)
}

// ParseProjectBlocks scans a whole-project response line by line and returns
// the delimited file blocks in encounter order. Content captured between
// markers that is wholly wrapped in one markdown fence has the fence
// stripped. Zero blocks is a valid result (empty slice, nil error); the
// caller decides whether that means the response is unusable. An open block
// that never sees its end marker is discarded. A mismatched end marker or a
// nested start marker yields a *MalformedResponseError rather than a
// best-effort pairing.
func ParseProjectBlocks(response string) ([]ConvertedFile, error) {
	var (
		files    []ConvertedFile
		open     bool
		openPath string
		body     []string
	)

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimRight(line, "\r")

		if p, ok := markerPath(trimmed, StartMarkerPrefix); ok {
			if open {
				return nil, &MalformedResponseError{OpenPath: openPath, MarkerPath: p}
			}
			open = true
			openPath = p
			body = body[:0]
			continue
		}
		if p, ok := markerPath(trimmed, EndMarkerPrefix); ok {
			if !open {
				// Stray end marker outside any block; ignore like any
				// other non-marker line.
				continue
			}
			if p != openPath {
				return nil, &MalformedResponseError{OpenPath: openPath, MarkerPath: p}
			}
			files = append(files, ConvertedFile{
				Path:    openPath,
				Content: stripWrappingFence(strings.Join(body, "\n")),
			})
			open = false
			continue
		}
		if open {
			body = append(body, trimmed)
		}
	}
	return files, nil
}

func markerPath(line, prefix string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, strings.TrimSpace(prefix)) {
		return "", false
	}
	p := strings.TrimSpace(strings.TrimPrefix(trimmed, strings.TrimSpace(prefix)))
	if p == "" {
		return "", false
	}
	return p, true
}

// stripWrappingFence removes a markdown code fence when the trimmed content
// is entirely wrapped in one: an opening fence with an optional language tag
// on its own line, and a closing fence as the final line. Anything else is
// returned trimmed but otherwise untouched.
func stripWrappingFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	nl := strings.IndexByte(trimmed, '\n')
	if nl < 0 {
		return trimmed
	}
	opening := strings.TrimSpace(trimmed[3:nl])
	if strings.ContainsAny(opening, " \t`") {
		// Not a bare language tag; leave the content alone.
		return trimmed
	}
	rest := trimmed[nl+1:]
	if !strings.HasSuffix(rest, "```") {
		return trimmed
	}
	inner := rest[:len(rest)-3]
	inner = strings.TrimSuffix(inner, "\n")
	return inner
}

// Payload is the result of extracting one per-file conversion response.
// Fenced reports whether a markdown fence was found and stripped; a raw
// payload is the trimmed response verbatim and may warrant stricter
// validation by the caller.
type Payload struct {
	Content string
	Fenced  bool
}

// ExtractFilePayload recovers the converted code from a per-file response.
// If the response contains a fenced code block, the first block's inner text
// is returned with Fenced set; otherwise the whole trimmed response is the
// payload. This never fails: a model that ignored instructions still yields
// its raw text.
func ExtractFilePayload(raw string) Payload {
	trimmed := strings.TrimSpace(raw)

	start := strings.Index(trimmed, "```")
	if start >= 0 {
		afterOpen := trimmed[start+3:]
		nl := strings.IndexByte(afterOpen, '\n')
		if nl >= 0 {
			tag := strings.TrimSpace(afterOpen[:nl])
			rest := afterOpen[nl+1:]
			if end := strings.Index(rest, "```"); end >= 0 && !strings.ContainsAny(tag, " \t`") {
				inner := strings.TrimSuffix(rest[:end], "\n")
				return Payload{Content: inner, Fenced: true}
			}
		}
	}
	return Payload{Content: trimmed, Fenced: false}
}
