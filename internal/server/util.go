package server

import (
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// sanitizeBase turns a configured prefix into "/seg[/seg...]", or "" for root.
func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" {
		return ""
	}
	clean := path.Clean("/" + bp)
	if clean == "/" {
		return ""
	}
	return clean
}

func writeJSON(c *gin.Context, code int, v any) {
	c.JSON(code, v)
}
