// Package httpd is the minimal HTTP responder started during bring-up.
// Handlers are registered on a Registry and served by echo once started.
package httpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bigbag/papyrix-bringup/internal/log"
)

// DefaultPort is the port the device serves on.
const DefaultPort = 80

const shutdownTimeout = 5 * time.Second

var ErrDuplicateRoute = errors.New("route already registered")

// Request is what a handler sees of an incoming request.
type Request struct {
	Method string
	Path   string
	query  string
}

// Query returns the raw query string. ok is false when the URI had none.
func (r *Request) Query() (query string, ok bool) {
	return r.query, r.query != ""
}

// Response is the handler's reply.
type Response struct {
	Status int
	Body   []byte
}

// NewResponse creates a response with a text body.
func NewResponse(status int, body string) *Response {
	return &Response{Status: status, Body: []byte(body)}
}

// HandlerFunc serves one route.
type HandlerFunc func(*Request) *Response

// Handler binds a HandlerFunc to a URI and method.
type Handler struct {
	URI    string
	Method string
	Fn     HandlerFunc
}

// Config holds the server settings.
type Config struct {
	Port int
}

// Registry collects handlers before the server starts.
type Registry struct {
	handlers []Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Handler adds h and returns the registry for further registrations.
func (r *Registry) Handler(h Handler) (*Registry, error) {
	if !strings.HasPrefix(h.URI, "/") {
		return r, fmt.Errorf("invalid URI %q: must start with /", h.URI)
	}
	if h.Fn == nil {
		return r, fmt.Errorf("nil handler for %s %s", h.Method, h.URI)
	}
	switch h.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead:
	default:
		return r, fmt.Errorf("unsupported method %q", h.Method)
	}

	for _, existing := range r.handlers {
		if existing.URI == h.URI && existing.Method == h.Method {
			return r, fmt.Errorf("%w: %s %s", ErrDuplicateRoute, h.Method, h.URI)
		}
	}

	r.handlers = append(r.handlers, h)
	return r, nil
}

// Handlers returns the number of registered handlers.
func (r *Registry) Handlers() int {
	return len(r.handlers)
}

// Server is a running responder.
type Server struct {
	echo     *echo.Echo
	listener net.Listener
	done     chan error
}

// Start binds the port and serves the registered handlers in the background.
// Port 0 picks a free port.
func (r *Registry) Start(cfg Config) (*Server, error) {
	e := r.build()

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", cfg.Port, err)
	}
	e.Listener = listener

	s := &Server{echo: e, listener: listener, done: make(chan error, 1)}

	go func() {
		log.Info().Str("addr", listener.Addr().String()).Int("handlers", len(r.handlers)).Msg("HTTP server started")
		err := e.Start("")
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	return s, nil
}

// build creates the echo instance serving the registered handlers.
func (r *Registry) build() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	for _, h := range r.handlers {
		e.Add(h.Method, h.URI, adapt(h.Fn))
	}
	return e
}

func adapt(fn HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := &Request{
			Method: c.Request().Method,
			Path:   c.Request().URL.Path,
			query:  c.Request().URL.RawQuery,
		}

		resp := fn(req)
		if resp == nil {
			return c.NoContent(http.StatusNoContent)
		}
		return c.Blob(resp.Status, echo.MIMETextPlainCharsetUTF8, resp.Body)
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("HTTP request")
			return nil
		},
	})
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return <-s.done
}
