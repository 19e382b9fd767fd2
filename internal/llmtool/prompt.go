package llmtool

import (
	"fmt"
	"strings"
)

// The multi-file wire format between prompt and parser. The instruction text
// below and ParseProjectBlocks share these constants, so the two sides cannot
// drift independently.
const (
	StartMarkerPrefix = "// START_FILE: "
	EndMarkerPrefix   = "// END_FILE: "

	entryDelimiter = "----------------------------------------"
)

// ProjectEntry is one source file included in a whole-project prompt.
type ProjectEntry struct {
	Path    string
	Content string
}

// ProjectPrompt builds the single whole-project conversion prompt. Entries
// arrive in discovery order; entries whose trimmed content is empty must
// already have been dropped by the caller.
func ProjectPrompt(targetStack string, entries []ProjectEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert front-end engineer. Rewrite the following web application project for %s.\n\n", targetStack)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- Convert all components, state handling, and logic to idiomatic %s code.\n", targetStack)
	fmt.Fprintf(&b, "- Use the conventional folder structure for a %s project.\n", targetStack)
	b.WriteString("- Generate a package.json with the correct runtime and build-tool dependencies, including \"dev\" and \"build\" script entries.\n")
	b.WriteString("- Generate the build configuration the target toolchain expects.\n")
	b.WriteString("- Generate a root index.html entry document.\n")
	b.WriteString("- Generate a README.md with setup and run instructions.\n")
	b.WriteString("- Correct every import and export path so the converted project is internally consistent.\n\n")

	b.WriteString("Output format (strict):\n")
	fmt.Fprintf(&b, "- Emit every file of the converted project as a block starting with the exact line %q followed by the file content, closed by the exact line %q with the identical path.\n",
		StartMarkerPrefix+"<path>", EndMarkerPrefix+"<path>")
	b.WriteString("- Do not emit any prose, explanations, or text outside these blocks.\n\n")

	b.WriteString("Project source files:\n\n")
	for _, e := range entries {
		b.WriteString(entryDelimiter)
		b.WriteByte('\n')
		fmt.Fprintf(&b, "File: %s\n", e.Path)
		b.WriteString("```\n")
		b.WriteString(e.Content)
		if !strings.HasSuffix(e.Content, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("```\n")
	}
	b.WriteString(entryDelimiter)
	b.WriteByte('\n')

	return b.String()
}

// FilePrompt builds the prompt for converting one file in isolation.
func FilePrompt(targetStack, baseName, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert front-end engineer. Convert the following file, %s, to its idiomatic %s equivalent.\n\n", baseName, targetStack)
	b.WriteString("Respond with only the converted raw code. No commentary, no explanations, no markdown fencing.\n\n")
	fmt.Fprintf(&b, "File %s:\n", baseName)
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteByte('\n')
	}
	return b.String()
}
