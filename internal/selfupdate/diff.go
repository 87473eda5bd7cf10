package selfupdate

import (
	"fmt"
	"strings"
)

// FileDiff is one file's hunk content from a parsed unified diff.
type FileDiff struct {
	Path         string
	AddedLines   []string
	RemovedLines []string
}

// parseUnifiedDiff extracts per-file added/removed line content from a
// unified diff. It is intentionally shallow — line classification for
// the governance guardrail and path extraction for the allowlist check,
// not a patch applier (git itself applies the patch in pipeline.go).
func parseUnifiedDiff(diff string) ([]FileDiff, error) {
	if strings.TrimSpace(diff) == "" {
		return nil, fmt.Errorf("selfupdate: empty diff")
	}

	var files []FileDiff
	var cur *FileDiff

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ "):
			path := strings.TrimPrefix(line, "+++ ")
			path = strings.TrimPrefix(path, "b/")
			if path == "/dev/null" {
				continue
			}
			files = append(files, FileDiff{Path: path})
			cur = &files[len(files)-1]
		case strings.HasPrefix(line, "--- "):
			// File identity comes from the +++ line; --- only matters
			// for deletions, which the +++ "/dev/null" case above skips
			// adding a FileDiff for (nothing to scan for added keys).
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			// malformed short header, ignore
		case cur == nil:
			// preamble (diff --git, index lines) before first hunk
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			cur.AddedLines = append(cur.AddedLines, strings.TrimPrefix(line, "+"))
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			cur.RemovedLines = append(cur.RemovedLines, strings.TrimPrefix(line, "-"))
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("selfupdate: diff contains no file headers")
	}
	return files, nil
}

func touchedPaths(files []FileDiff) []string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths
}
