package xmp

import (
	"path/filepath"
	"strings"
)

// GroupSeparator joins interior folder names into one group name.
const GroupSeparator = " - "

// InferClusterGroup derives cluster and group from the folders between base
// and filePath: the first folder is the cluster, the rest form the group.
// A file directly inside base, or outside it, yields empty values.
func InferClusterGroup(filePath, basePath string) (cluster, group string) {
	rel, err := filepath.Rel(basePath, filePath)
	if err != nil {
		return "", ""
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", ""
	}

	parts := strings.Split(rel, "/")
	if len(parts) < 2 {
		return "", ""
	}
	cluster = parts[0]
	group = strings.Join(parts[1:len(parts)-1], GroupSeparator)
	return cluster, strings.TrimSpace(group)
}
