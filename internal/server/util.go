package server

import (
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// sanitizeBase normalizes the API base path: empty and "/" collapse to "",
// everything else gets a leading slash and loses trailing ones.
func sanitizeBase(bp string) string {
	bp = strings.Trim(strings.TrimSpace(bp), "/")
	if bp == "" {
		return ""
	}
	return "/" + bp
}

// isSafeName accepts prefix names usable as a single directory component:
// alphanumerics plus . _ - with no ".." sequence.
func isSafeName(s string) bool {
	if s == "" || strings.Contains(s, "..") {
		return false
	}
	bad := strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '.', r == '_', r == '-':
			return false
		}
		return true
	})
	return bad < 0
}

// isSafeAbsPath accepts the empty string or an absolute, already-clean
// path, so request bodies cannot smuggle ".." segments into filesystem
// access. Trailing separators are tolerated.
func isSafeAbsPath(p string) bool {
	if p == "" {
		return true
	}
	if !filepath.IsAbs(p) {
		return false
	}
	clean := filepath.Clean(p)
	return clean == p || clean == strings.TrimRight(p, string(filepath.Separator))
}

func writeJSON(c *gin.Context, code int, v any) {
	c.JSON(code, v)
}
