package toolset

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/casualjim/athene/tool"
)

const maxReadLines = 50

type readFileItem struct {
	Path      string `json:"path" jsonschema:"description=Absolute path to the file."`
	StartLine int    `json:"start_line,omitempty" jsonschema:"description=1-based start line to read from (default 1)."`
}

type readFileArgs struct {
	Files []readFileItem `json:"files" jsonschema:"description=Files to read."`
}

// ReadFile returns a tool that reads file sections with line numbers, up to
// 50 lines per file.
func ReadFile() tool.Tool {
	return tool.Must("read_file",
		"Reads files from absolute paths and returns their contents prefixed with line numbers. "+
			"Each file includes a path and a 1-based start line, and returns up to 50 lines.",
		runReadFile,
		tool.WithApprovalPrompt(readFilePrompt),
	)
}

func readFilePrompt(args json.RawMessage) (string, string) {
	var summary strings.Builder
	gjson.GetBytes(args, "files").ForEach(func(_, file gjson.Result) bool {
		if summary.Len() > 0 {
			summary.WriteByte('\n')
		}
		start := file.Get("start_line").Int()
		if start < 1 {
			start = 1
		}
		// The file may end before the cap; promise only what is read.
		fmt.Fprintf(&summary, "%s from L%d, up to %d lines", file.Get("path").String(), start, maxReadLines)
		return true
	})
	return summary.String(), "Agent wants to read these files"
}

func runReadFile(_ context.Context, args readFileArgs) (string, error) {
	var result strings.Builder
	for _, file := range args.Files {
		if !filepath.IsAbs(file.Path) {
			return "", tool.Failf("`path` must be absolute")
		}
		start := file.StartLine
		if start == 0 {
			start = 1
		}
		if start < 1 {
			return "", tool.Failf("`start_line` must be 1-based")
		}

		section, err := readSection(file.Path, start)
		if err != nil {
			return "", err
		}
		if result.Len() > 0 {
			result.WriteByte('\n')
		}
		result.WriteString(section)
	}
	return result.String(), nil
}

func readSection(path string, startLine int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", tool.Failf("%v", err)
	}
	defer f.Close()
	return formatSection(path, f, startLine)
}

func formatSection(path string, r io.Reader, startLine int) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var lines []string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo < startLine {
			continue
		}
		lines = append(lines, scanner.Text())
		if len(lines) >= maxReadLines {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", tool.Failf("%v", err)
	}

	var result strings.Builder
	fmt.Fprintf(&result, "==> %s <==\n", path)
	if len(lines) > 0 {
		lastLineNo := startLine + len(lines) - 1
		width := len(fmt.Sprint(lastLineNo))
		for offset, line := range lines {
			fmt.Fprintf(&result, "%*d: %s\n", width, startLine+offset, line)
		}
	}
	return result.String(), nil
}
