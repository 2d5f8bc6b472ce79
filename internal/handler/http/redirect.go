package http

import (
	"LinkSnap-Backend/internal/service"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RedirectHandler обработчик редиректов
type RedirectHandler struct {
	redirects *service.RedirectService
	log       *zap.Logger
}

// NewRedirectHandler создает новый обработчик редиректов
func NewRedirectHandler(redirects *service.RedirectService, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		redirects: redirects,
		log:       log,
	}
}

// HandleRedirect обрабатывает редирект по короткому коду
//
//	@Summary		Follow a short link
//	@Tags			Redirect
//	@Param			shortCode	path	string	true	"Short code"
//	@Success		302
//	@Failure		404	{object}	ErrorResponse	"URL not found"
//	@Failure		410	{object}	ErrorResponse	"URL expired"
//	@Router			/{shortCode} [get]
//	@Router			/api/url/{shortCode} [get]
func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "shortCode")

	visit := service.Visit{
		IPAddress: extractIPAddress(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	}

	target, err := h.redirects.Resolve(r.Context(), code, visit)
	if err != nil {
		h.log.Debug("redirect refused", zap.String("short_code", code), zap.Error(err))
		writeServiceError(w, h.log, err, 0)
		return
	}

	h.log.Debug("redirect",
		zap.String("short_code", code),
		zap.String("ip", visit.IPAddress),
	)
	http.Redirect(w, r, target, http.StatusFound)
}
