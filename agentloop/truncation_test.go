package agentloop

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateOutput(t *testing.T) {
	assert.Equal(t, "short", TruncateOutput("short", 10, TruncateHeadTail))
	assert.Equal(t, "unbounded", TruncateOutput("unbounded", 0, TruncateHeadTail))

	long := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	got := TruncateOutput(long, 20, TruncateHeadTail)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("a", 10)))
	assert.True(t, strings.HasSuffix(got, strings.Repeat("b", 10)))
	assert.Contains(t, got, "80 characters were removed")

	got = TruncateOutput(long, 20, TruncateTail)
	assert.True(t, strings.HasSuffix(got, strings.Repeat("b", 20)))
	assert.Contains(t, got, "First 80 characters were removed")
}

func TestTruncateOutputKeepsRunesWhole(t *testing.T) {
	accented := strings.Repeat("é", 50)
	for _, limit := range []int{7, 21, 23, 64} {
		for _, mode := range []TruncationMode{TruncateHeadTail, TruncateTail} {
			got := TruncateOutput(accented, limit, mode)
			assert.True(t, utf8.ValidString(got), "limit %d mode %s: %q", limit, mode, got)
		}
	}

	got := TruncateOutput(accented, 23, TruncateHeadTail)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("é", 5)+"\n"))
	assert.True(t, strings.HasSuffix(got, "\n"+strings.Repeat("é", 6)))
	assert.Contains(t, got, "78 characters were removed")
}

func TestTruncateLines(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	input := strings.Join(lines, "\n")

	assert.Equal(t, input, TruncateLines(input, 10))
	assert.Equal(t, input, TruncateLines(input, 0))

	got := TruncateLines(input, 4)
	assert.Equal(t, "line 0\nline 1\n[... 6 lines omitted ...]\nline 8\nline 9", got)
}

func TestTruncateToolOutputKeepsExitCode(t *testing.T) {
	reg := NewCoreToolRegistry(CoreToolOptions{BashCharLimit: 200, BashLineLimit: 20})
	bash, err := reg.Lookup("Bash")
	assert.NoError(t, err)

	output := strings.Repeat("noise\n", 1000) + "[exit code: 1]"
	got := TruncateToolOutput(output, bash)
	assert.Less(t, len(got), len(output))
	assert.True(t, strings.HasSuffix(got, "[exit code: 1]"), got)
	assert.LessOrEqual(t, strings.Count(got, "\n"), 20)
}

func TestTruncateToolOutputReadIsUnbounded(t *testing.T) {
	reg := NewCoreToolRegistry(DefaultCoreToolOptions())
	read, err := reg.Lookup("Read")
	assert.NoError(t, err)

	content := strings.Repeat("x", 100000)
	assert.Equal(t, content, TruncateToolOutput(content, read))
	assert.Equal(t, content, TruncateToolOutput(content, nil))
}
