// Package respond writes the API's JSON bodies: cached dataset and model
// payloads with ETag revalidation, plain objects, and structured errors.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/albapepper/mlb-contract-value/internal/cache"
)

// ErrorResponse is the error body of every non-2xx response.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail,omitempty"`
	} `json:"error"`
}

// Cached writes a cached payload. A request whose If-None-Match matches the
// payload's ETag gets a bodiless 304. hit sets X-Cache.
func Cached(w http.ResponseWriter, r *http.Request, resp cache.Response, ttl time.Duration, hit bool) {
	h := w.Header()
	h.Set("ETag", resp.ETag)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), resp.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", "application/json")
	h.Set("Vary", "Accept-Encoding")
	if hit {
		h.Set("X-Cache", "HIT")
	} else {
		h.Set("X-Cache", "MISS")
	}
	maxAge := int(ttl.Seconds())
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge/2))
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Data)
}

// JSON marshals v. Used for bodies that must not be cached: health checks
// and predictions.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error writes an error body without detail.
func Error(w http.ResponseWriter, status int, code, message string) {
	ErrorDetail(w, status, code, message, "")
}

// ErrorDetail writes an error body. detail usually carries the wrapped
// error text.
func ErrorDetail(w http.ResponseWriter, status int, code, message, detail string) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Detail = detail
	JSON(w, status, resp)
}

// BadParam reports a query parameter outside [lo, hi]. The code is
// INVALID_<NAME>.
func BadParam(w http.ResponseWriter, name string, lo, hi int) {
	Error(w, http.StatusBadRequest, "INVALID_"+strings.ToUpper(name), fmt.Sprintf("%s must be an integer between %d and %d", name, lo, hi))
}
