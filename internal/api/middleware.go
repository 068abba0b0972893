package api

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger is a Gin middleware that logs every operator-API request,
// tagged with the node id so logs from multiple nodes sharing one
// terminal or log aggregator can still be told apart.
func Logger(nodeID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[%s] [%s] %s %s | %d | %s",
			nodeID,
			c.Request.Method,
			c.Request.URL.Path,
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(start),
		)
	}
}

// Recovery converts a handler panic into a 500 instead of taking down
// the node's operator API.
func Recovery(nodeID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[%s] PANIC recovered in operator API: %v", nodeID, err)
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
