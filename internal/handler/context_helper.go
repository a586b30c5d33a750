package handler

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/gakuen-dev/biz-ops-api/internal/middleware"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func scopeFromContext(c *gin.Context) (models.RequestScope, bool) {
	value, exists := c.Get(middleware.ContextScopeKey)
	if !exists {
		return models.RequestScope{}, false
	}
	scope, ok := value.(models.RequestScope)
	return scope, ok
}

// serveDownload streams a generated export. The filename goes out RFC 5987
// encoded so non-ASCII org and contract codes survive, and the fileDownload
// cookie lets the frontend's blocking-download helper detect completion.
func serveDownload(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	c.SetCookie("fileDownload", "true", 0, "/", "", false, false)
	c.Data(http.StatusOK, downloadContentType(filename), data)
}

func downloadContentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".csv":
		return mime.FormatMediaType("text/csv", map[string]string{"charset": "Shift_JIS"})
	case ".tsv":
		return mime.FormatMediaType("text/tab-separated-values", map[string]string{"charset": "UTF-16"})
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
