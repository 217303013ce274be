package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/formbricks/wordsim/internal/api/response"
)

// BodyLimitRecorder counts requests rejected by MaxBody. Implemented by observability.Metrics.
type BodyLimitRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MaxBody caps request bodies at maxBytes. A handler that reads past the cap gets an error from
// r.Body and its response is replaced by 413 with a problem document. A non-positive maxBytes
// disables the cap. recorder may be nil.
//
// Responses to POST, PUT and PATCH are held in memory until the handler returns so the 413 can
// replace them. Other methods stream, which keeps /v1/events unbuffered.
func MaxBody(maxBytes int64, recorder BodyLimitRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, maxBytes)}
			r.Body = body

			if !carriesBody(r.Method) {
				next.ServeHTTP(w, r)

				return
			}

			held := &heldResponse{ResponseWriter: w}
			next.ServeHTTP(held, r)

			if !body.exceeded {
				held.release()

				return
			}

			if recorder != nil {
				recorder.RecordRequestBodyTooLarge(r.Context())
			}

			response.RespondError(w, http.StatusRequestEntityTooLarge,
				"Request Entity Too Large", "request body exceeds maximum allowed size")
		})
	}
}

func carriesBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// limitedBody remembers whether the underlying MaxBytesReader hit its cap.
type limitedBody struct {
	io.ReadCloser

	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		b.exceeded = true
	}

	return n, err //nolint:wrapcheck // io.EOF must reach callers unwrapped
}

// heldResponse buffers status and body until release.
type heldResponse struct {
	http.ResponseWriter

	status int
	body   bytes.Buffer
}

func (h *heldResponse) WriteHeader(code int) {
	if h.status == 0 {
		h.status = code
	}
}

func (h *heldResponse) Write(p []byte) (int, error) {
	return h.body.Write(p) //nolint:wrapcheck // bytes.Buffer never returns an error
}

func (h *heldResponse) release() {
	if h.status != 0 {
		h.ResponseWriter.WriteHeader(h.status)
	}

	_, _ = h.body.WriteTo(h.ResponseWriter)
}
