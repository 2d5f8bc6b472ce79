package http

import (
	"LinkSnap-Backend/internal/auth"
	"LinkSnap-Backend/internal/service"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dashboardURLTruncate = 40

// AnalyticsHandler обработчик аналитики
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	log       *zap.Logger
}

func NewAnalyticsHandler(analytics *service.AnalyticsService, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, log: log}
}

// ClickEntry одно событие перехода
type ClickEntry struct {
	ID             int64     `json:"id"`
	ShortCode      string    `json:"shortCode"`
	ClickTimestamp time.Time `json:"clickTimestamp"`
	IPAddress      string    `json:"ipAddress"`
	UserAgent      string    `json:"userAgent"`
	Referrer       string    `json:"referrer"`
	Country        string    `json:"country"`
	DeviceType     string    `json:"deviceType"`
}

// ClicksPagination пагинация событий
type ClicksPagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalClicks int64 `json:"totalClicks"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// CodeAnalyticsResponse ответ со списком событий
type CodeAnalyticsResponse struct {
	Analytics  []ClickEntry     `json:"analytics"`
	Pagination ClicksPagination `json:"pagination"`
}

// DashboardTotals итоги по всем ссылкам пользователя
type DashboardTotals struct {
	TotalURLs     int   `json:"totalUrls"`
	TotalClicks   int64 `json:"totalClicks"`
	RecentClicks  int64 `json:"recentClicks"`
	URLsRemaining int   `json:"urlsRemaining"`
}

// TopURL ссылка из топа по кликам
type TopURL struct {
	ID              uuid.UUID `json:"id"`
	ShortCode       string    `json:"shortCode"`
	OriginalURL     string    `json:"originalUrl"`
	FullOriginalURL string    `json:"fullOriginalUrl"`
	Clicks          int64     `json:"clicks"`
	ShortURL        string    `json:"shortUrl"`
}

// DashboardResponse ответ дашборда
type DashboardResponse struct {
	Summary DashboardTotals `json:"summary"`
	TopURLs []TopURL        `json:"topUrls"`
}

// CodeAnalytics возвращает события переходов по коду
//
//	@Summary		Click events of a short code
//	@Tags			Analytics
//	@Produce		json
//	@Security		BearerAuth
//	@Param			shortCode	path		string	true	"Short code"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			limit		query		int		false	"Page size"		default(20)
//	@Success		200			{object}	CodeAnalyticsResponse
//	@Failure		404			{object}	ErrorResponse
//	@Router			/api/analytics/{shortCode} [get]
func (h *AnalyticsHandler) CodeAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.log, "Not authorized", http.StatusUnauthorized)
		return
	}

	code := chi.URLParam(r, "shortCode")
	clicks, p, err := h.analytics.CodeAnalytics(r.Context(), userID, code, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, h.log, err, 0)
		return
	}

	entries := make([]ClickEntry, len(clicks))
	for i, c := range clicks {
		entries[i] = ClickEntry{
			ID:             c.ID,
			ShortCode:      c.ShortCode,
			ClickTimestamp: c.ClickedAt,
			IPAddress:      c.IPAddress,
			UserAgent:      c.UserAgent,
			Referrer:       c.DisplayReferrer(),
			Country:        c.Country,
			DeviceType:     string(c.DeviceType),
		}
	}

	writeJSON(w, h.log, CodeAnalyticsResponse{
		Analytics: entries,
		Pagination: ClicksPagination{
			CurrentPage: p.Page,
			TotalPages:  p.TotalPages,
			TotalClicks: p.Total,
			HasNextPage: p.HasNext(),
			HasPrevPage: p.HasPrev(),
		},
	}, http.StatusOK)
}

// Dashboard возвращает сводку по всем ссылкам пользователя
//
//	@Summary		Dashboard summary
//	@Tags			Analytics
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	DashboardResponse
//	@Router			/api/analytics/dashboard/summary [get]
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.log, "Not authorized", http.StatusUnauthorized)
		return
	}

	summary, err := h.analytics.Dashboard(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err, 0)
		return
	}

	top := make([]TopURL, len(summary.TopURLs))
	for i, link := range summary.TopURLs {
		top[i] = TopURL{
			ID:              link.ID,
			ShortCode:       link.ShortCode,
			OriginalURL:     truncate(link.OriginalURL, dashboardURLTruncate),
			FullOriginalURL: link.OriginalURL,
			Clicks:          link.Clicks,
			ShortURL:        link.ShortURL,
		}
	}

	writeJSON(w, h.log, DashboardResponse{
		Summary: DashboardTotals{
			TotalURLs:     summary.TotalURLs,
			TotalClicks:   summary.TotalClicks,
			RecentClicks:  summary.RecentClicks,
			URLsRemaining: summary.URLsRemaining,
		},
		TopURLs: top,
	}, http.StatusOK)
}
