package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/schema"
	"hft/pkg/exception"
)

const (
	headerRequestID = "X-Request-ID"
	shutdownTimeout = 5 * time.Second
)

// Server exposes /health and the /metrics, /risk and /alerts websocket topics.
type Server struct {
	router  *gin.Engine
	metrics *Hub
	risk    *Hub
	alerts  *Hub
	now     func() time.Time
}

func NewServer() *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:  gin.New(),
		metrics: NewHub("metrics", true),
		risk:    NewHub("risk", true),
		alerts:  NewHub("alerts", false),
		now:     time.Now,
	}
	s.router.Use(gin.Recovery(), RequestID(), Logging())
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(s.metrics))
	s.router.GET("/risk", gin.WrapH(s.risk))
	s.router.GET("/alerts", gin.WrapH(s.alerts))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) PublishMetrics(m schema.PerformanceMetrics) {
	s.broadcast(s.metrics, m)
}

func (s *Server) PublishRisk(r schema.RiskSnapshot) {
	s.broadcast(s.risk, r)
}

func (s *Server) PublishAlert(a schema.Alert) {
	s.broadcast(s.alerts, a)
}

func (s *Server) broadcast(h *Hub, v any) {
	if err := h.Broadcast(v); err != nil {
		logs.Errorf("broadcast %s, err: %+v", h.Topic(), err)
	}
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(exception.ErrIO, "listen").With("addr", addr, "error", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(exception.ErrIO, "shutdown").With("addr", addr, "error", err)
	}
	return nil
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(headerRequestID, requestID)
		c.Next()
	}
}

// Logging writes one access log line per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logs.With(
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		).Info("request completed")
	}
}
