package toolset

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/casualjim/athene/tool"
)

const maxGlobResults = 50

type globArgs struct {
	Pattern string `json:"pattern" jsonschema:"description=The glob pattern; must be relative to path."`
	Path    string `json:"path" jsonschema:"description=Absolute path to search in."`
}

// Glob returns a tool that finds files by glob pattern, including **
// recursive patterns. Results are capped at 50 entries.
func Glob() tool.Tool {
	return tool.Must("glob",
		"Find files and directories using glob patterns. "+
			"This tool supports standard glob syntax like *, ?, and ** for recursive searches.",
		runGlob,
		tool.WithApprovalPrompt(func(args json.RawMessage) (string, string) {
			return gjson.GetBytes(args, "pattern").String(), "Agent wants to list files"
		}),
	)
}

func runGlob(_ context.Context, args globArgs) (string, error) {
	if filepath.IsAbs(args.Pattern) {
		return "", tool.Failf("`pattern` must be relative to `path`")
	}
	if !filepath.IsAbs(args.Path) {
		return "", tool.Failf("`path` must be absolute")
	}

	matches, err := expandGlob(args.Path, args.Pattern)
	if err != nil {
		return "", tool.Failf("%v", err)
	}
	if len(matches) > maxGlobResults {
		matches = matches[:maxGlobResults]
	}

	var result strings.Builder
	for _, m := range matches {
		result.WriteString(m)
		result.WriteByte('\n')
	}
	return result.String(), nil
}

// expandGlob matches pattern under root. Patterns without ** go straight to
// filepath.Glob; with ** the tree is walked and each visited path is
// matched segment-wise.
func expandGlob(root, pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		return filepath.Glob(filepath.Join(root, pattern))
	}

	// Validate the pattern up front so a malformed one fails loudly instead
	// of silently matching nothing.
	for _, seg := range strings.Split(pattern, "/") {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, "probe"); err != nil {
			return nil, err
		}
	}

	patSegs := strings.Split(path.Clean(filepath.ToSlash(pattern)), "/")
	var matches []string
	err := filepath.WalkDir(root, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return nil
		}
		if matchSegments(patSegs, strings.Split(filepath.ToSlash(rel), "/")) {
			matches = append(matches, p)
			if len(matches) > maxGlobResults {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// matchSegments matches path segments against pattern segments, where a
// "**" pattern segment swallows any number of path segments.
func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for skip := 0; skip <= len(segs); skip++ {
			if matchSegments(pattern[1:], segs[skip:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}
