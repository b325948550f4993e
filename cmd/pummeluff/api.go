package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ============================================================================
// Management HTTP API
// ============================================================================
//
//	GET  /action-classes/   action registry (name -> description)
//	POST /actions/          {"action": "Volume", "parameter": 40}
//	GET  /ws                dispatch event feed
//	GET  /health
//
// ============================================================================

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type actionRequest struct {
	Action    string `json:"action" binding:"required"`
	Parameter any    `json:"parameter"`
}

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// APIHandler serves the management endpoints.
type APIHandler struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewAPIHandler(d *Dispatcher, logger *slog.Logger) *APIHandler {
	return &APIHandler{dispatcher: d, logger: logger}
}

// ActionClasses lists every action with its description.
func (h *APIHandler) ActionClasses(c *gin.Context) {
	c.JSON(http.StatusOK, ActionRegistry())
}

// SubmitAction validates and executes one action.
func (h *APIHandler) SubmitAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "request body must be {\"action\": ..., \"parameter\": ...}",
			Details: err.Error(),
		})
		return
	}

	kind, err := ParseActionKind(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "UNKNOWN_ACTION", Message: err.Error()})
		return
	}

	a := Action{Kind: kind, Parameter: req.Parameter}
	if err := h.dispatcher.Submit(a, originHTTP); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMETER", Message: verr.Reason})
			return
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Code: "EXECUTION_FAILED", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, actionResponse{Success: true, Message: fmt.Sprintf("executed %s", a)})
}

func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger logs every request through slog.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

// NewRouter wires the API routes. hub may be nil, which disables /ws.
func NewRouter(h *APIHandler, hub *Hub, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/health", h.Health)
	r.GET("/action-classes/", h.ActionClasses)
	r.POST("/actions/", h.SubmitAction)
	if hub != nil {
		r.GET("/ws", hub.serveEvents)
	}
	return r
}

// runAPIServer serves handler on port and shuts it down gracefully when ctx
// is canceled.
func runAPIServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	listenAddr := fmt.Sprintf(":%d", port)
	logger.Info("http api listening", "port", port)

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		// ListenAndServe returns http.ErrServerClosed on Shutdown.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
