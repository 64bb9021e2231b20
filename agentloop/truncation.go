package agentloop

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// TruncateOutput applies character-based truncation to output.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	switch mode {
	case TruncateTail:
		start := runeStartAfter(output, len(output)-maxChars)
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n", start) +
			output[start:]

	default:
		headEnd := runeStartBefore(output, maxChars/2)
		tailStart := runeStartAfter(output, len(output)-(maxChars-maxChars/2))
		return output[:headEnd] +
			fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
				"If you need to see specific parts, re-run the command with more targeted output.]\n\n",
				tailStart-headEnd) +
			output[tailStart:]
	}
}

// runeStartBefore moves i back to the nearest rune boundary.
func runeStartBefore(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeStartAfter moves i forward to the nearest rune boundary.
func runeStartAfter(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// TruncateLines applies line-based truncation using head/tail split.
func TruncateLines(output string, maxLines int) string {
	if maxLines <= 0 {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies a tool's limits: characters first (handles
// pathological single-line output), then lines (readability). The tail of
// the output, where Bash reports its exit code, is always kept.
func TruncateToolOutput(output string, tool *RegisteredTool) string {
	if tool == nil {
		return output
	}
	result := TruncateOutput(output, tool.OutputCharLimit, TruncateHeadTail)
	return TruncateLines(result, tool.OutputLineLimit)
}
