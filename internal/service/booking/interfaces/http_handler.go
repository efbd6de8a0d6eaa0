// internal/service/booking/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"voyago/internal/pkg/logger"
	"voyago/internal/service/booking/application"
	"voyago/internal/service/booking/application/saga"
	"voyago/internal/service/booking/domain"
)

const serviceName = "booking-service"

// BookingHandler 封装了预订服务的 HTTP 处理器。
type BookingHandler struct {
	orchestrator *saga.Orchestrator
	backoffice   *application.BackofficeService
	repo         domain.BookingRepository

	reservationTTL time.Duration
}

// NewBookingHandler 创建 HTTP 处理器实例。
func NewBookingHandler(orchestrator *saga.Orchestrator, backoffice *application.BackofficeService, repo domain.BookingRepository, reservationTTL time.Duration) *BookingHandler {
	return &BookingHandler{
		orchestrator:   orchestrator,
		backoffice:     backoffice,
		repo:           repo,
		reservationTTL: reservationTTL,
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *BookingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/bookings", h.createBookingHandler)
	mux.HandleFunc("/api/bookings/get", h.getBookingHandler)
	mux.HandleFunc("/api/backoffice/bookings/status", h.overrideStatusHandler)
}

type createBookingRequest struct {
	UserID         string             `json:"userId"`
	BookingType    domain.BookingType `json:"bookingType"`
	ProductDetails json.RawMessage    `json:"productDetails"`
	TotalAmount    int64              `json:"totalAmount"`
	Currency       string             `json:"currency"`
}

type createBookingResponse struct {
	BookingID string `json:"bookingId"`
	SagaID    string `json:"sagaId"`
	Status    string `json:"status"`
}

// createBookingHandler 创建预订并启动 saga，返回 202：
// 真正的结论由异步校验得出，客户端轮询或订阅事件获取进展。
func (h *BookingHandler) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.CreateBooking")
	defer span.End()

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := domain.NewBooking(req.UserID, req.BookingType, req.ProductDetails, req.TotalAmount, req.Currency, h.reservationTTL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("booking.id", booking.ID),
		attribute.String("booking.type", string(booking.BookingType)),
	)

	if err := h.orchestrator.StartSaga(ctx, booking); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to start booking saga")
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(createBookingResponse{
		BookingID: booking.ID,
		SagaID:    booking.SagaID,
		Status:    string(booking.Status),
	})
}

// getBookingHandler 按 bookingId 查询预订当前状态。
func (h *BookingHandler) getBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID := r.URL.Query().Get("bookingId")
	if bookingID == "" {
		http.Error(w, "bookingId is required", http.StatusBadRequest)
		return
	}

	booking, err := h.repo.FindByID(r.Context(), bookingID)
	if err != nil {
		if err == domain.ErrBookingNotFound {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bookingId":          booking.ID,
		"sagaId":             booking.SagaID,
		"status":             booking.Status,
		"sagaState":          booking.SagaState,
		"confirmationNumber": booking.ConfirmationNumber,
		"cancellationReason": booking.CancellationReason,
		"expiresAt":          booking.ReservationExpiresAt,
	})
}

type overrideStatusRequest struct {
	BookingID string               `json:"bookingId"`
	Target    domain.BookingStatus `json:"target"`
	Note      string               `json:"note"`
}

// overrideStatusHandler 是后台管理的状态覆盖入口，走同一张流转表。
func (h *BookingHandler) overrideStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req overrideStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := h.backoffice.OverrideStatus(r.Context(), req.BookingID, req.Target, req.Note)
	if err != nil {
		if err == domain.ErrBookingNotFound {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bookingId": booking.ID,
		"status":    booking.Status,
	})
}
