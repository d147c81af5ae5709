// internal/purchaseapi/handler/handler.go
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/storage"
	"github.com/YaganovValera/purchase-pipeline/internal/response"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
)

// Handler обслуживает read-path сервиса purchase-api.
type Handler struct {
	store storage.Store
	log   *logger.Logger
}

// New создаёт Handler.
func New(store storage.Store, log *logger.Logger) *Handler {
	return &Handler{store: store, log: log.Named("handler")}
}

// Routes возвращает маршруты для httpserver.
func (h *Handler) Routes() map[string]http.Handler {
	return map[string]http.Handler{
		"/purchases": http.HandlerFunc(h.purchases),
	}
}

type purchasesResponse struct {
	UserID    string                     `json:"userId"`
	Purchases []storage.PurchaseDocument `json:"purchases"`
}

// purchases отдаёт покупки пользователя, новые сверху.
// GET /purchases?userId=<id>
func (h *Handler) purchases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, "use GET")
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		response.BadRequest(w, "userId is required")
		return
	}

	docs, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		h.log.WithContext(r.Context()).Error("list purchases failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		response.InternalError(w, "storage lookup failed")
		return
	}

	response.JSON(w, purchasesResponse{UserID: userID, Purchases: docs})
}
