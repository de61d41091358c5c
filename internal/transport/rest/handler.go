// Package rest provides the HTTP handlers of the marketplace API.
package rest

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	marketerrors "github.com/abgdnv/coinmarket/internal/errors"
	"github.com/abgdnv/coinmarket/internal/service"
	"github.com/abgdnv/coinmarket/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	orders   service.OrderService
	catalog  service.CatalogService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new Handler serving both the order and the catalog API.
func NewHandler(orders service.OrderService, catalog service.CatalogService, logger *slog.Logger) *Handler {
	return &Handler{
		orders:   orders,
		catalog:  catalog,
		validate: service.NewValidator(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the marketplace.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.RegisterAccount)
			r.Route("/{accountID}", func(r chi.Router) {
				r.Get("/", h.GetAccount)
				r.Post("/coins", h.AddCoins)
				r.Get("/orders/unseen", h.ListUnseenOrders)
				r.Get("/report", h.AccountReport)
			})
		})
		r.Route("/shops", func(r chi.Router) {
			r.Post("/", h.CreateShop)
			r.Route("/{shopID}", func(r chi.Router) {
				r.Post("/products", h.AddProduct)
				r.Put("/products/{productName}", h.UpdateProduct)
				r.Get("/orders/pending", h.ListPendingOrders)
				r.Get("/orders/delivered", h.ListDeliveredOrders)
				r.Get("/report", h.ShopReport)
				r.Get("/revenue", h.ShopRevenue)
			})
		})
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.PlaceOrder)
			r.Post("/single", h.PlaceSingleItemOrder)
			r.Put("/lines/{lineID}/deliver", h.DeliverOrder)
			r.Put("/lines/{lineID}/decline", h.DeclineOrder)
			r.Put("/{orderID}/viewed", h.MarkOrderViewed)
		})
	})
	r.Get("/healthz", h.HealthCheck)
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var dto service.PlaceOrderDto
	if !web.DecodeAndValidate(w, r, mLogger, h.validate, &dto) {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to place order", "account_id", dto.AccountID, "lines", len(dto.Lines))
	result, err := h.orders.PlaceOrder(r.Context(), dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "place order", err)
		return
	}
	mLogger.InfoContext(r.Context(), "Order placed successfully", "order_id", result.OrderID)
	web.RespondJSON(w, mLogger, http.StatusCreated, result)
}

func (h *Handler) PlaceSingleItemOrder(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var dto service.SingleItemOrderDto
	if !web.DecodeAndValidate(w, r, mLogger, h.validate, &dto) {
		return
	}
	line, err := h.orders.PlaceSingleItemOrder(r.Context(), dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "place single item order", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusCreated, line)
}

func (h *Handler) DeclineOrder(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger, "lineID")
	if !ok {
		return
	}
	line, err := h.orders.DeclineOrder(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "decline order line", err)
		return
	}
	mLogger.InfoContext(r.Context(), "Order line declined", "line_id", id)
	web.RespondJSON(w, mLogger, http.StatusOK, line)
}

func (h *Handler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger, "lineID")
	if !ok {
		return
	}
	line, err := h.orders.DeliverOrder(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "deliver order line", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, line)
}

func (h *Handler) MarkOrderViewed(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	raw := chi.URLParam(r, "orderID")
	orderID, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		web.RespondError(w, mLogger, http.StatusBadRequest, fmt.Sprintf("Invalid order ID: %s", raw))
		return
	}
	if err := h.orders.MarkOrderViewed(r.Context(), int32(orderID)); err != nil {
		h.respondServiceError(w, r, mLogger, "mark order viewed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPendingOrders(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	shopID, ok := web.PathParam(w, r, mLogger, "shopID")
	if !ok {
		return
	}
	groups, err := h.orders.ListPendingOrders(r.Context(), shopID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "list pending orders", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, groups)
}

func (h *Handler) ListDeliveredOrders(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	shopID, ok := web.PathParam(w, r, mLogger, "shopID")
	if !ok {
		return
	}
	lines, err := h.orders.ListDeliveredOrders(r.Context(), shopID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "list delivered orders", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, lines)
}

func (h *Handler) ListUnseenOrders(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	accountID, ok := web.PathParam(w, r, mLogger, "accountID")
	if !ok {
		return
	}
	orders, err := h.orders.ListUnseenOrdersForAccount(r.Context(), accountID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "list unseen orders", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, orders)
}

func (h *Handler) AccountReport(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	accountID, ok := web.PathParam(w, r, mLogger, "accountID")
	if !ok {
		return
	}
	month, year, ok := parsePeriod(w, r, mLogger)
	if !ok {
		return
	}
	lines, err := h.orders.AccountMonthlyReport(r.Context(), accountID, month, year)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "account report", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, lines)
}

func (h *Handler) ShopReport(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	shopID, ok := web.PathParam(w, r, mLogger, "shopID")
	if !ok {
		return
	}
	month, year, ok := parsePeriod(w, r, mLogger)
	if !ok {
		return
	}
	lines, err := h.orders.ShopMonthlyReport(r.Context(), shopID, month, year)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "shop report", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, lines)
}

func (h *Handler) ShopRevenue(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	shopID, ok := web.PathParam(w, r, mLogger, "shopID")
	if !ok {
		return
	}
	revenue, err := h.orders.ShopRevenue(r.Context(), shopID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "shop revenue", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, revenue)
}

// parsePeriod reads the month and year query parameters of a report.
func parsePeriod(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int, int, bool) {
	month, ok := web.ParseValidateRange(r, w, logger, "month", 1, 12)
	if !ok {
		return 0, 0, false
	}
	year, ok := web.ParseValidateRange(r, w, logger, "year", 1, 9999)
	if !ok {
		return 0, 0, false
	}
	return month, year, true
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// respondServiceError maps a service error to its HTTP status. Internal errors are logged
// and hidden from the client.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	kind := marketerrors.KindOf(err)
	var status int
	switch kind {
	case marketerrors.KindNotFound, marketerrors.KindProductNotFound:
		status = http.StatusNotFound
	case marketerrors.KindConflict:
		status = http.StatusConflict
	case marketerrors.KindInsufficientStock, marketerrors.KindInsufficientFunds:
		status = http.StatusUnprocessableEntity
	case marketerrors.KindValidation:
		status = http.StatusBadRequest
	default:
		logger.ErrorContext(r.Context(), "Failed to "+op, "error", err)
		web.RespondError(w, logger, http.StatusInternalServerError, "Internal server error")
		return
	}
	logger.WarnContext(r.Context(), "Request rejected", "operation", op, "kind", kind.String(), "error", err)
	web.RespondError(w, logger, status, err.Error())
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
