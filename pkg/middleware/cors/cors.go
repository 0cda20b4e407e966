package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// New builds a CORS middleware. An empty origin list allows every
// origin; otherwise only listed origins (trailing slash ignored) are
// echoed back.
func New(allowedOrigins []string) gin.HandlerFunc {
	allow := originMatcher(allowedOrigins)

	return func(c *gin.Context) {
		header := c.Writer.Header()
		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && allow(origin):
			header.Set("Access-Control-Allow-Origin", origin)
		case origin == "" && allow(""):
			header.Set("Access-Control-Allow-Origin", "*")
		}

		header.Set("Vary", "Origin")
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Access-Control-Allow-Headers", allowedHeaders)
		header.Set("Access-Control-Allow-Methods", allowedMethods)
		header.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originMatcher(origins []string) func(string) bool {
	if len(origins) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(origin string) bool {
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
