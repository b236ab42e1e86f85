package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/originserver/internal/auth"
	"github.com/Brownie44l1/originserver/internal/bufpool"
	"github.com/Brownie44l1/originserver/internal/mime"
	"github.com/Brownie44l1/originserver/internal/request"
	"github.com/Brownie44l1/originserver/internal/response"
)

// Status messages carried in text/plain bodies
const (
	msgInvalidRequest     = "Invalid request received"
	msgMalformedRequest   = "Malformed request"
	msgVersion            = "Only HTTP/1.1 is supported"
	msgInvalidCredentials = "Invalid credentials"
	msgNotFound           = "File not found"
	msgMethodNotAllowed   = "Unsupported HTTP method"
	msgCreated            = "File successfully created or updated"
	msgWriteFailed        = "Error writing file"
	msgReadFailed         = "Error reading file"
	msgDeleteFailed       = "Failed to delete file"
	msgInternal           = "Internal Server Error"
)

// Config is the immutable serving configuration
type Config struct {
	// Root is the document root every target is joined to
	Root string

	// MIME resolves content types for GET and HEAD; nil means mime.Default()
	MIME *mime.Registry

	// Confine rejects resolved paths that fall outside Root with 404.
	// Off by default: targets are joined naively, ".." included.
	Confine bool
}

// methodFunc handles one method for an already authorized request
type methodFunc func(h *Handler, ctx context.Context, req *request.Request, path string) *response.Response

// Handler turns a parsed request into exactly one response. It holds no
// mutable state and is shared by every worker.
type Handler struct {
	root    string
	confine bool
	mime    *mime.Registry
	gate    auth.Gate
	methods map[request.Method]methodFunc
}

// New builds a Handler from cfg
func New(cfg Config) *Handler {
	registry := cfg.MIME
	if registry == nil {
		registry = mime.Default()
	}

	return &Handler{
		root:    cfg.Root,
		confine: cfg.Confine,
		mime:    registry,
		methods: map[request.Method]methodFunc{
			request.MethodGet:    (*Handler).serveGet,
			request.MethodHead:   (*Handler).serveHead,
			request.MethodPut:    (*Handler).servePut,
			request.MethodDelete: (*Handler).serveDelete,
		},
	}
}

// Root returns the document root
func (h *Handler) Root() string {
	return h.root
}

// Resolve joins target onto the document root. The second result is
// false only when confinement is on and the path escapes the root.
func (h *Handler) Resolve(target string) (string, bool) {
	path := filepath.Join(h.root, filepath.FromSlash(target))
	if !h.confine {
		return path, true
	}

	rel, err := filepath.Rel(h.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path, false
	}
	return path, true
}

// Serve authenticates and dispatches req. The logger is taken from ctx
// via zerolog.Ctx.
func (h *Handler) Serve(ctx context.Context, req *request.Request) *response.Response {
	log := zerolog.Ctx(ctx)

	path, ok := h.Resolve(req.Target)
	if !ok {
		log.Warn().Str("target", req.Target).Msg("target escapes document root")
		return response.Text(response.StatusNotFound, msgNotFound)
	}

	decision := h.gate.Check(path, req.Headers)
	log.Debug().
		Str("path", path).
		Int("headers", req.Headers.Len()).
		Stringer("auth", decision).
		Msg("auth gate")
	if !decision.Allowed() {
		if decision == auth.MissingCredentials {
			return response.Unauthorized(auth.Challenge)
		}
		return response.Text(response.StatusForbidden, msgInvalidCredentials)
	}

	fn, ok := h.methods[req.Method]
	if !ok {
		return response.Text(response.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
	return h.dispatch(ctx, fn, req, path)
}

// dispatch runs fn, turning a panic into a 500
func (h *Handler) dispatch(ctx context.Context, fn methodFunc, req *request.Request, path string) (resp *response.Response) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Str("method", string(req.Method)).
				Msg("panic recovered")
			resp = response.Text(response.StatusInternalServerError, msgInternal)
		}
	}()
	return fn(h, ctx, req, path)
}

// Reject maps a parse failure to its response. It returns nil when the
// connection should be dropped without answering.
func Reject(err error) *response.Response {
	switch {
	case errors.Is(err, request.ErrConnRead):
		return nil
	case errors.Is(err, request.ErrUnsupportedVersion):
		return response.Text(response.StatusHTTPVersionNotSupported, msgVersion)
	case errors.Is(err, request.ErrEmptyRequest):
		return response.Text(response.StatusBadRequest, msgInvalidRequest)
	case errors.Is(err, request.ErrMalformedRequest):
		return response.Text(response.StatusBadRequest, msgMalformedRequest)
	default:
		return nil
	}
}

// contentType resolves the content type from the lower-cased extension
func (h *Handler) contentType(path string) string {
	return h.mime.Lookup(mime.Extension(path))
}

// statFile returns info for a regular file. Any stat failure, or a
// directory, counts as "does not exist".
func statFile(path string) (os.FileInfo, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return info, true
}

func (h *Handler) serveGet(ctx context.Context, req *request.Request, path string) *response.Response {
	if _, ok := statFile(path); !ok {
		return response.Text(response.StatusNotFound, msgNotFound)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", path).Msg("read failed")
		return response.Text(response.StatusInternalServerError, msgReadFailed)
	}
	return response.Bytes(response.StatusOK, h.contentType(path), data)
}

func (h *Handler) serveHead(ctx context.Context, req *request.Request, path string) *response.Response {
	info, ok := statFile(path)
	if !ok {
		return response.Text(response.StatusNotFound, msgNotFound)
	}

	// opened but not read, so HEAD fails wherever GET would
	f, err := os.Open(path)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", path).Msg("open failed")
		return response.Text(response.StatusInternalServerError, msgReadFailed)
	}
	f.Close()
	return response.Sized(response.StatusOK, h.contentType(path), info.Size())
}

func (h *Handler) servePut(ctx context.Context, req *request.Request, path string) *response.Response {
	log := zerolog.Ctx(ctx)

	if err := writeFile(path, req.Body, req.ContentLength()); err != nil {
		log.Error().Err(err).Str("path", path).Msg("write failed")
		return response.Text(response.StatusInternalServerError, msgWriteFailed)
	}
	return response.Text(response.StatusCreated, msgCreated)
}

// writeFile creates or truncates path and copies up to n bytes from body.
// A body shorter than n is not an error.
func writeFile(path string, body io.Reader, n int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	if n > 0 {
		if _, err := bufpool.CopyN(f, body, n); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			f.Close()
			return fmt.Errorf("copy body: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (h *Handler) serveDelete(ctx context.Context, req *request.Request, path string) *response.Response {
	if _, err := os.Stat(path); err != nil {
		return response.Text(response.StatusNotFound, msgNotFound)
	}

	if err := os.Remove(path); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", path).Msg("delete failed")
		return response.Text(response.StatusInternalServerError, msgDeleteFailed)
	}
	return response.NoContent()
}
