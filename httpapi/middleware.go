package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestID stamps every response with a W3C traceparent header, the same
// format and header name original_source's RequestIDMiddleware used. Trace
// and span ids are generated upfront, before c.Next(), since a handler may
// flush the response (and its headers) before the middleware chain unwinds.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := randomHex(16)
		spanID := randomHex(8)
		c.Set("trace_id", traceID)
		c.Set("span_id", spanID)

		c.Header("traceparent", "00-"+traceID+"-"+spanID+"-01")

		c.Next()
	}
}

// Timing reports request duration via the Server-Timing header (RFC 8673),
// ported from original_source's TimingMiddleware. Unlike the Starlette ASGI
// middleware it's ported from, gin flushes status and headers the moment a
// handler calls c.JSON/c.Data, so the duration can't be computed after
// c.Next() and set with c.Header() — it would arrive too late to reach the
// client. timingWriter wraps the ResponseWriter and injects the header into
// the first Write/WriteHeader call instead.
func Timing() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		tw := &timingWriter{ResponseWriter: c.Writer, start: start}
		c.Writer = tw
		c.Next()
	}
}

type timingWriter struct {
	gin.ResponseWriter
	start      time.Time
	wroteTimer bool
}

func (w *timingWriter) stamp() {
	if w.wroteTimer {
		return
	}
	w.wroteTimer = true
	durMS := float64(time.Since(w.start)) / float64(time.Millisecond)
	w.Header().Set("server-timing", fmt.Sprintf("total;dur=%.2f", durMS))
}

func (w *timingWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *timingWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *timingWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is not recoverable; a trace id is not worth a panic,
		// so fall back to an all-zero id rather than dropping the request.
		return hex.EncodeToString(make([]byte, n))
	}
	return hex.EncodeToString(b)
}
