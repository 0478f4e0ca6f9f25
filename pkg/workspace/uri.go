package workspace

import (
	"net/url"
	"path/filepath"
	"strings"
)

// URIToPath turns a document URI into a file system path. Plain paths pass
// through unchanged.
func URIToPath(uri string) string {
	p := strings.TrimPrefix(uri, "file://")
	p = strings.TrimPrefix(p, "file:")
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return filepath.FromSlash(p)
}

func PathToURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
