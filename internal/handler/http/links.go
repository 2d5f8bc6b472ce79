package http

import (
	"LinkSnap-Backend/internal/auth"
	"LinkSnap-Backend/internal/repository"
	"LinkSnap-Backend/internal/service"
	"LinkSnap-Backend/pkg/qrcode"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const listURLTruncate = 50

// LinksHandler обработчик для работы со ссылками
type LinksHandler struct {
	shortener *service.URLShortenerService
	analytics *service.AnalyticsService
	log       *zap.Logger
}

// NewLinksHandler создает новый обработчик ссылок
func NewLinksHandler(shortener *service.URLShortenerService, analytics *service.AnalyticsService, log *zap.Logger) *LinksHandler {
	return &LinksHandler{
		shortener: shortener,
		analytics: analytics,
		log:       log,
	}
}

// CreateLinkRequest структура запроса создания ссылки
type CreateLinkRequest struct {
	OriginalURL string `json:"originalUrl"`
}

// CreateLinkResponse структура ответа создания ссылки
type CreateLinkResponse struct {
	ID          uuid.UUID `json:"id"`
	OriginalURL string    `json:"originalUrl"`
	ShortCode   string    `json:"shortCode"`
	ShortURL    string    `json:"shortUrl"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// LinkInfo элемент списка ссылок
type LinkInfo struct {
	ID              uuid.UUID `json:"id"`
	OriginalURL     string    `json:"originalUrl"`
	FullOriginalURL string    `json:"fullOriginalUrl"`
	ShortCode       string    `json:"shortCode"`
	ShortURL        string    `json:"shortUrl"`
	Clicks          int64     `json:"clicks"`
	CreatedAt       time.Time `json:"createdAt"`
	IsActive        bool      `json:"isActive"`
}

// LinksPagination пагинация списка ссылок
type LinksPagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalURLs   int64 `json:"totalUrls"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// ListLinksResponse структура ответа списка ссылок
type ListLinksResponse struct {
	URLs       []LinkInfo      `json:"urls"`
	Pagination LinksPagination `json:"pagination"`
}

// StatsURL описание ссылки в ответе статистики
type StatsURL struct {
	ID          uuid.UUID `json:"id"`
	OriginalURL string    `json:"originalUrl"`
	ShortCode   string    `json:"shortCode"`
	ShortURL    string    `json:"shortUrl"`
	TotalClicks int64     `json:"totalClicks"`
	CreatedAt   time.Time `json:"createdAt"`
	IsActive    bool      `json:"isActive"`
}

// StatsBody агрегаты по кликам
type StatsBody struct {
	ClicksLast24Hours int64                   `json:"clicksLast24Hours"`
	TopReferrers      []repository.GroupCount `json:"topReferrers"`
	DeviceStats       []repository.GroupCount `json:"deviceStats"`
}

// GetStatsResponse структура ответа статистики
type GetStatsResponse struct {
	URL   StatsURL  `json:"url"`
	Stats StatsBody `json:"stats"`
}

// QRCodeResponse QR код короткой ссылки
type QRCodeResponse struct {
	QRCode string `json:"qrCode"`
}

// CreateLink создает новую короткую ссылку
//
//	@Summary		Create a short link
//	@Description	Create a new shortened URL
//	@Tags			Links
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateLinkRequest	true	"Link creation request"
//	@Success		201		{object}	CreateLinkResponse	"Link created successfully"
//	@Failure		400		{object}	ErrorResponse	"Invalid URL or short code collision"
//	@Failure		401		{object}	ErrorResponse	"Authentication required"
//	@Failure		403		{object}	ErrorResponse	"URL limit reached"
//	@Failure		429		{object}	ErrorResponse	"Too many requests"
//	@Failure		503		{object}	ErrorResponse	"Short code allocation exhausted"
//	@Router			/api/url/shorten [post]
func (h *LinksHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.log, "Not authorized", http.StatusUnauthorized)
		return
	}

	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid create link request", zap.Error(err))
		writeError(w, h.log, "Please provide a URL", http.StatusBadRequest)
		return
	}

	link, err := h.shortener.Shorten(r.Context(), userID, req.OriginalURL, requestBase(r))
	if err != nil {
		writeServiceError(w, h.log, err, h.shortener.Quota())
		return
	}

	writeJSON(w, h.log, CreateLinkResponse{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		ShortCode:   link.ShortCode,
		ShortURL:    link.ShortURL,
		Clicks:      link.Clicks,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	}, http.StatusCreated)
}

// ListLinks возвращает список ссылок пользователя
//
//	@Summary		List my links
//	@Tags			Links
//	@Produce		json
//	@Security		BearerAuth
//	@Param			page	query		int	false	"Page number"	default(1)
//	@Param			limit	query		int	false	"Page size"		default(10)
//	@Success		200		{object}	ListLinksResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/api/url/myurls [get]
func (h *LinksHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.log, "Not authorized", http.StatusUnauthorized)
		return
	}

	links, p, err := h.shortener.ListLinks(r.Context(), userID, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, h.log, err, h.shortener.Quota())
		return
	}

	infos := make([]LinkInfo, len(links))
	for i, link := range links {
		infos[i] = LinkInfo{
			ID:              link.ID,
			OriginalURL:     truncate(link.OriginalURL, listURLTruncate),
			FullOriginalURL: link.OriginalURL,
			ShortCode:       link.ShortCode,
			ShortURL:        link.ShortURL,
			Clicks:          link.Clicks,
			CreatedAt:       link.CreatedAt,
			IsActive:        link.IsActive,
		}
	}

	writeJSON(w, h.log, ListLinksResponse{
		URLs: infos,
		Pagination: LinksPagination{
			CurrentPage: p.Page,
			TotalPages:  p.TotalPages,
			TotalURLs:   p.Total,
			HasNextPage: p.HasNext(),
			HasPrevPage: p.HasPrev(),
		},
	}, http.StatusOK)
}

// GetStats возвращает статистику по ссылке
//
//	@Summary		Link statistics
//	@Tags			Links
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Link ID"
//	@Success		200	{object}	GetStatsResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/url/{id}/stats [get]
func (h *LinksHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.ownedLinkParams(w, r)
	if !ok {
		return
	}

	stats, err := h.analytics.LinkStats(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.log, err, h.shortener.Quota())
		return
	}

	link := stats.Link
	writeJSON(w, h.log, GetStatsResponse{
		URL: StatsURL{
			ID:          link.ID,
			OriginalURL: link.OriginalURL,
			ShortCode:   link.ShortCode,
			ShortURL:    link.ShortURL,
			TotalClicks: link.Clicks,
			CreatedAt:   link.CreatedAt,
			IsActive:    link.IsActive,
		},
		Stats: StatsBody{
			ClicksLast24Hours: stats.ClicksLast24Hours,
			TopReferrers:      nonNil(stats.TopReferrers),
			DeviceStats:       nonNil(stats.DeviceStats),
		},
	}, http.StatusOK)
}

// DeleteLink удаляет ссылку
//
//	@Summary		Delete a link
//	@Description	Delete a link with its click history and free one quota slot
//	@Tags			Links
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Link ID"
//	@Success		200	{object}	MessageResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/url/{id} [delete]
func (h *LinksHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.ownedLinkParams(w, r)
	if !ok {
		return
	}

	if err := h.shortener.DeleteLink(r.Context(), userID, id); err != nil {
		writeServiceError(w, h.log, err, h.shortener.Quota())
		return
	}

	writeJSON(w, h.log, MessageResponse{Message: "URL deleted successfully"}, http.StatusOK)
}

// QRCode возвращает QR код короткой ссылки
//
//	@Summary		Link QR code
//	@Tags			Links
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Link ID"
//	@Success		200	{object}	QRCodeResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/url/{id}/qr [get]
func (h *LinksHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.ownedLinkParams(w, r)
	if !ok {
		return
	}

	link, err := h.shortener.GetLink(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.log, err, h.shortener.Quota())
		return
	}

	uri, err := qrcode.DataURI(link.ShortURL, qrcode.DefaultSize)
	if err != nil {
		h.log.Error("failed to render qr code", zap.String("short_code", link.ShortCode), zap.Error(err))
		writeError(w, h.log, "Server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, QRCodeResponse{QRCode: uri}, http.StatusOK)
}

// ownedLinkParams достает пользователя и ID ссылки. Некорректный ID
// отвечает так же, как отсутствующая ссылка.
func (h *LinksHandler) ownedLinkParams(w http.ResponseWriter, r *http.Request) (int64, uuid.UUID, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.log, "Not authorized", http.StatusUnauthorized)
		return 0, uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, "URL not found", http.StatusNotFound)
		return 0, uuid.Nil, false
	}
	return userID, id, true
}

// nonNil keeps empty aggregates encoded as [] rather than null.
func nonNil(groups []repository.GroupCount) []repository.GroupCount {
	if groups == nil {
		return []repository.GroupCount{}
	}
	return groups
}
