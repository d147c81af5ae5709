// internal/gateway/handler/handler.go
//
// Публичная HTTP-поверхность гейтвея:
//
//	POST /buy                 — принять заказ и опубликовать PurchaseCreated;
//	GET  /getAllBoughtItems   — отдать покупки пользователя (через purchase-api).
//
// Ответ /buy приходит только после ack брокера: «accepted» означает, что
// событие надёжно принято кластером, а не просто поставлено в очередь.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/purchase-pipeline/internal/gateway/metrics"
	"github.com/YaganovValera/purchase-pipeline/internal/publisher"
	"github.com/YaganovValera/purchase-pipeline/internal/response"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
	"github.com/YaganovValera/purchase-pipeline/pkg/redis"
)

// PurchaseReader абстрагирует источник списка покупок (HTTP-клиент purchase-api).
type PurchaseReader interface {
	PurchasesByUser(ctx context.Context, userID string) ([]byte, error)
}

// Handler обслуживает публичные маршруты гейтвея.
type Handler struct {
	pub    *publisher.Publisher
	reader PurchaseReader
	cache  redis.Cache // nil → кэширование выключено
	log    *logger.Logger
}

// New создаёт Handler. cache может быть nil.
func New(pub *publisher.Publisher, reader PurchaseReader, cache redis.Cache, log *logger.Logger) *Handler {
	return &Handler{pub: pub, reader: reader, cache: cache, log: log.Named("handler")}
}

// Routes возвращает маршруты для httpserver.
func (h *Handler) Routes() map[string]http.Handler {
	return map[string]http.Handler{
		"/buy":               http.HandlerFunc(h.buy),
		"/getAllBoughtItems": http.HandlerFunc(h.boughtItems),
	}
}

// ----------------------------------------------------------------------------
// POST /buy
// ----------------------------------------------------------------------------

type buyRequest struct {
	UserID   string `json:"userId"`
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type buyResponse struct {
	Status  string `json:"status"`
	EventID string `json:"eventId"`
}

func (h *Handler) buy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.MethodNotAllowed(w, "use POST")
		return
	}

	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.OrdersRejectedTotal.Inc()
		response.BadRequest(w, "malformed JSON body")
		return
	}

	start := time.Now()
	receipt, err := h.pub.Publish(r.Context(), publisher.BuyOrder{
		UserID:   req.UserID,
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
	})
	switch {
	case errors.Is(err, publisher.ErrInvalidOrder):
		metrics.OrdersRejectedTotal.Inc()
		response.BadRequest(w, err.Error())
		return
	case err != nil:
		metrics.OrdersFailedTotal.Inc()
		h.log.WithContext(r.Context()).Error("publish failed", zap.Error(err))
		response.InternalError(w, "event delivery failed")
		return
	}

	metrics.OrdersAcceptedTotal.Inc()
	metrics.PublishLatency.Observe(time.Since(start).Seconds())

	// Список покупок пользователя изменится после консьюмации —
	// закэшированный ответ больше не актуален.
	h.invalidate(r.Context(), req.UserID)

	response.JSON(w, buyResponse{Status: "accepted", EventID: receipt.EventID})
}

// ----------------------------------------------------------------------------
// GET /getAllBoughtItems
// ----------------------------------------------------------------------------

func (h *Handler) boughtItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, "use GET")
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		response.BadRequest(w, "userId is required")
		return
	}

	if body, ok := h.fromCache(r.Context(), userID); ok {
		metrics.CacheHitsTotal.Inc()
		writeRawJSON(w, body)
		return
	}
	metrics.CacheMissesTotal.Inc()

	body, err := h.reader.PurchasesByUser(r.Context(), userID)
	if err != nil {
		h.log.WithContext(r.Context()).Error("purchase-api request failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		response.BadGateway(w, "purchase-api unavailable")
		return
	}

	h.store(r.Context(), userID, body)
	writeRawJSON(w, body)
}

// ----------------------------------------------------------------------------
// Cache helpers
// ----------------------------------------------------------------------------

func cacheKey(userID string) string { return "purchases:" + userID }

func (h *Handler) fromCache(ctx context.Context, userID string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	body, err := h.cache.Get(ctx, cacheKey(userID))
	if err != nil {
		if !errors.Is(err, redis.ErrNotFound) {
			h.log.WithContext(ctx).Warn("cache get failed", zap.Error(err))
		}
		return nil, false
	}
	return body, true
}

func (h *Handler) store(ctx context.Context, userID string, body []byte) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, cacheKey(userID), body); err != nil {
		h.log.WithContext(ctx).Warn("cache set failed", zap.Error(err))
	}
}

func (h *Handler) invalidate(ctx context.Context, userID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(ctx, cacheKey(userID)); err != nil {
		h.log.WithContext(ctx).Warn("cache invalidation failed", zap.Error(err))
	}
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
