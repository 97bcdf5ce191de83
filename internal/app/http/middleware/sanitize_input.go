package middleware

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Credentials are hashed or compared byte for byte and never rendered.
var rawFields = map[string]bool{
	"password":      true,
	"refresh_token": true,
}

// cleanString strips markup but keeps plain text as typed, so "A & B" is not
// stored as "A &amp; B". Decoding can surface markup that arrived
// entity-encoded, so it repeats until nothing changes.
func cleanString(s string) string {
	for i := 0; i < 4; i++ {
		out := html.UnescapeString(strictPolicy.Sanitize(s))
		if out == s {
			return out
		}
		s = out
	}
	return strictPolicy.Sanitize(s)
}

func sanitizeField(key string, v interface{}) interface{} {
	if rawFields[key] {
		return v
	}
	return sanitizeValue(v)
}

// SanitizeAndCleanInputMiddleware strips markup from every string in a JSON
// object body, nested values included. Remarks end up in the ledger and are
// shown back to users, so nothing HTML-ish is stored.
func SanitizeAndCleanInputMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}
		if ct := c.ContentType(); ct != "" && !strings.HasSuffix(ct, "json") {
			c.Next()
			return
		}

		buf, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid body"})
			return
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(buf))
			c.Next()
			return
		}

		var body map[string]interface{}
		dec := json.NewDecoder(bytes.NewReader(buf))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
			return
		}
		for k, v := range body {
			body[k] = sanitizeField(k, v)
		}

		newBody, err := json.Marshal(body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(newBody))
		c.Request.ContentLength = int64(len(newBody))

		c.Next()
	}
}

func sanitizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return cleanString(t)
	case map[string]interface{}:
		for k, inner := range t {
			t[k] = sanitizeField(k, inner)
		}
		return t
	case []interface{}:
		for i, inner := range t {
			t[i] = sanitizeValue(inner)
		}
		return t
	}
	return v
}
