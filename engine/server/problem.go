package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowgate/flowgate/pkg/logger"
)

// Problem captures the information returned in an RFC 7807 error response.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"error"`
	Status int    `json:"status"`
	Detail string `json:"details,omitempty"`
	Code   string `json:"code,omitempty"`
}

// respondProblem writes a canonical RFC 7807 error response and aborts the
// request.
func respondProblem(c *gin.Context, status int, code string, detail string) {
	problem := &Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Code:   code,
	}
	log := logger.FromContext(c.Request.Context())
	fields := []any{
		"status", status,
		"code", code,
		"detail", detail,
		"path", c.Request.URL.Path,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Warn("request rejected", fields...)
	}
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(status, problem)
}
