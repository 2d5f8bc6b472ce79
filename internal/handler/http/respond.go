package http

import (
	"LinkSnap-Backend/internal/service"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrorResponse структура ошибки
type ErrorResponse struct {
	Message         string `json:"message"`
	UpgradeRequired bool   `json:"upgradeRequired,omitempty"`
}

// MessageResponse простой ответ с сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, message string, statusCode int) {
	writeJSON(w, log, ErrorResponse{Message: message}, statusCode)
}

// writeServiceError переводит ошибки сервисного слоя в HTTP ответы
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, quota int) {
	switch {
	case errors.Is(err, service.ErrMissingURL):
		writeError(w, log, "Please provide a URL", http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidURL):
		writeError(w, log, "Please provide a valid URL with http/https", http.StatusBadRequest)
	case errors.Is(err, service.ErrQuotaExceeded):
		writeJSON(w, log, ErrorResponse{
			Message:         "URL limit reached. Maximum " + strconv.Itoa(quota) + " URLs allowed for free tier.",
			UpgradeRequired: true,
		}, http.StatusForbidden)
	case errors.Is(err, service.ErrCodeCollision):
		writeError(w, log, "Short code already exists, please try again", http.StatusBadRequest)
	case errors.Is(err, service.ErrAllocationExhausted):
		writeError(w, log, "Could not generate a short code, please try again", http.StatusServiceUnavailable)
	case errors.Is(err, service.ErrLinkNotFound):
		writeError(w, log, "URL not found", http.StatusNotFound)
	case errors.Is(err, service.ErrLinkExpired):
		writeError(w, log, "This URL has expired", http.StatusGone)
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, log, "Not authorized", http.StatusUnauthorized)
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, log, "Server error", http.StatusInternalServerError)
	}
}

// extractIPAddress извлекает IP адрес из запроса с учетом прокси
func extractIPAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For может содержать список IP через запятую
		first, _, _ := strings.Cut(ip, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// requestBase returns scheme://host of the incoming request.
func requestBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme, _, _ = strings.Cut(proto, ",")
		scheme = strings.TrimSpace(scheme)
	}
	return scheme + "://" + r.Host
}

// truncate shortens s to max runes followed by "...".
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// queryInt reads a positive integer query parameter, 0 when absent or malformed.
func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
