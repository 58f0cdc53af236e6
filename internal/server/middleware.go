package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Alias1177/CryptoPredictor/internal/database"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
	"github.com/Alias1177/CryptoPredictor/models"
)

const maxBodyBytes = 10 << 20

type ctxKey struct{}

func userFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(ctxKey{}).(*models.User)
	return u
}

// checkUser admits only active, unexpired subscribers. The telegram id comes
// from the query string or the JSON body.
func (s *Server) checkUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("telegram_id")

		if raw == "" && r.Body != nil {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				writeError(w, http.StatusBadRequest, "could not read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var probe struct {
				TelegramID json.RawMessage `json:"telegram_id"`
			}
			if len(body) > 0 && json.Unmarshal(body, &probe) == nil {
				raw = string(probe.TelegramID)
			}
		}

		id, ok := parseTelegramID(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "telegram_id is required")
			return
		}

		user, err := s.store.GetUser(r.Context(), id)
		if err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				s.logger.Error().Err(err).Int64("telegram_id", id).Msg("User lookup failed")
			}
			writeError(w, http.StatusForbidden, "unauthorized")
			return
		}
		if !user.IsActive {
			writeError(w, http.StatusForbidden, "unauthorized")
			return
		}
		if !user.HasActiveSubscription(s.now()) {
			writeError(w, http.StatusForbidden, "subscription expired")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

// parseTelegramID accepts a bare or quoted integer.
func parseTelegramID(raw string) (int64, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" || raw == "null" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
