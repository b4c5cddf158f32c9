package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/marketplace/internal/server/http/dto"
)

// DecompressRequest inflates gzip encoded request bodies. The inflated body is
// capped at maxBytes; reading past it fails the handler's bind.
func DecompressRequest(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(strings.TrimSpace(c.GetHeader("Content-Encoding")), "gzip") {
			c.Next()
			return
		}

		original := c.Request.Body
		reader, err := gzip.NewReader(original)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.Envelope{Message: "invalid gzip body", Kind: "validation"})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, gzipBody{Reader: reader, original: original}, maxBytes)
		c.Request.Header.Del("Content-Encoding")
		c.Request.ContentLength = -1
		c.Next()
	}
}

type gzipBody struct {
	*gzip.Reader
	original io.Closer
}

func (b gzipBody) Close() error {
	_ = b.Reader.Close()
	return b.original.Close()
}
