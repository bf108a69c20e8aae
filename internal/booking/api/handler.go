package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ubongpr7/music-booking/internal/auth"
	"github.com/ubongpr7/music-booking/internal/booking"
	"github.com/ubongpr7/music-booking/internal/inventory"
	"github.com/ubongpr7/music-booking/internal/logger"
	"github.com/ubongpr7/music-booking/internal/models"
	"github.com/ubongpr7/music-booking/internal/payment/storage"
	"github.com/ubongpr7/music-booking/internal/settlement"
	"github.com/ubongpr7/music-booking/internal/utils"
)

// WebhookParser verifies and decodes an incoming payment processor webhook.
type WebhookParser interface {
	ParseWebhook(r *http.Request) (*models.PaymentEvent, *settlement.WebhookError)
}

type Handler struct {
	BookingService *booking.Service
	Settlement     *settlement.Coordinator
	Payments       storage.Store
	Webhooks       WebhookParser
	Logger         *logger.Logger
}

func NewHandler(svc *booking.Service, coord *settlement.Coordinator, payments storage.Store, webhooks WebhookParser, log *logger.Logger) *Handler {
	return &Handler{
		BookingService: svc,
		Settlement:     coord,
		Payments:       payments,
		Webhooks:       webhooks,
		Logger:         log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/bookings", h.CreateBooking)
	r.Get("/bookings", h.ListBookings)
	r.Get("/bookings/{bookingId}", h.GetBooking)
	r.Put("/bookings/{bookingId}/status", h.UpdateBookingStatus)
	r.Get("/booking-groups/{reference}", h.GetBookingGroup)
	r.Get("/booking-groups/{reference}/payments", h.ListGroupPayments)
	r.Get("/checkout", h.Checkout)
	r.Post("/event-sections", h.CreateEventSection)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.EventSectionID == "" {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "event_section_id is required"))
		return
	}

	userID := auth.UserID(r.Context())
	if userID == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "no user identity on request"))
		return
	}

	resp, err := h.BookingService.CreateBooking(r.Context(), userID, req.EventSectionID, req.NumberOfTickets)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: %v", err))
		h.writeBookingError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Booking created", resp))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	b, err := h.BookingService.GetBooking(r.Context(), bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Booking not found", bookingID))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetBooking %s: %v", bookingID, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load booking", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking", b))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "no user identity on request"))
		return
	}

	bookings, err := h.BookingService.ListBookingsForUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListBookings for %s: %v", userID, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not list bookings", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Bookings", bookings))
}

func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	var req models.BookingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	resp, err := h.BookingService.SetBookingStatus(r.Context(), bookingID, req.Status)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateBookingStatus %s -> %s: %v", bookingID, req.Status, err))
		h.writeBookingError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking status updated", resp))
}

func (h *Handler) GetBookingGroup(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	group, err := h.BookingService.GetBookingGroup(r.Context(), reference)
	if err != nil {
		if errors.Is(err, booking.ErrGroupNotFound) {
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Booking group not found", reference))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetBookingGroup %s: %v", reference, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load booking group", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking group", group))
}

func (h *Handler) ListGroupPayments(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	group, err := h.BookingService.GetBookingGroup(r.Context(), reference)
	if err != nil {
		if errors.Is(err, booking.ErrGroupNotFound) {
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Booking group not found", reference))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("ListGroupPayments %s: %v", reference, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load booking group", err.Error()))
		return
	}

	payments, err := h.Payments.ListPaymentsForGroup(group.Group.ID, 50, 0)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListGroupPayments %s: %v", reference, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not list payments", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Payments", payments))
}

// Checkout opens a payment session for a booking group and returns the
// processor's redirect URL.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "reference query parameter is required"))
		return
	}
	successURL := r.URL.Query().Get("success_url")
	cancelURL := r.URL.Query().Get("cancel_url")

	url, err := h.Settlement.CreateCheckout(r.Context(), reference, successURL, cancelURL)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrGroupNotFound):
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Booking group not found", reference))
		case errors.Is(err, settlement.ErrEmptyGroup):
			h.writeJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Nothing to pay for", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("Checkout %s: %v", reference, err))
			h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not create checkout session", err.Error()))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Checkout session created", models.CheckoutResponse{RedirectURL: url}))
}

// StripeWebhook receives payment confirmations. Status codes are chosen for
// an at-least-once sender: 2xx acknowledges (including duplicates and
// declines, which need no retry), 4xx rejects events that can never succeed,
// 5xx invites redelivery for transient failures.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	event, whErr := h.Webhooks.ParseWebhook(r)
	if whErr != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("parse failed: category=%s status=%d: %v", whErr.Category, whErr.StatusCode, whErr.InternalError))
		http.Error(w, whErr.PublicError, whErr.StatusCode)
		return
	}
	if event == nil {
		// Event type we do not consume.
		w.WriteHeader(http.StatusOK)
		return
	}

	err := h.Settlement.HandlePaymentEvent(r.Context(), *event)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, settlement.ErrAlreadyProcessed):
		h.Logger.Info("WEBHOOK", fmt.Sprintf("duplicate confirmation for group %s (txn %s)", event.GroupReference, event.TransactionID))
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, settlement.ErrPaymentDeclined):
		// The decline itself was delivered successfully; nothing to retry.
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, settlement.ErrGroupNotFound):
		h.Logger.Warn("WEBHOOK", fmt.Sprintf("unknown group %s (txn %s)", event.GroupReference, event.TransactionID))
		http.Error(w, "unknown booking group", http.StatusBadRequest)
	default:
		h.Logger.Error("WEBHOOK", fmt.Sprintf("settlement failed for group %s: %v", event.GroupReference, err))
		http.Error(w, "settlement error", http.StatusInternalServerError)
	}
}

func (h *Handler) CreateEventSection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID          string  `json:"event_id"`
		VenueSectionID   string  `json:"venue_section_id"`
		TicketsAvailable int     `json:"tickets_available"`
		TicketPrice      float64 `json:"ticket_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.EventID == "" || req.VenueSectionID == "" {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "event_id and venue_section_id are required"))
		return
	}

	section, err := h.BookingService.CreateEventSection(r.Context(), req.EventID, req.VenueSectionID, req.TicketsAvailable, req.TicketPrice)
	if err != nil {
		if errors.Is(err, inventory.ErrCapacityExceeded) {
			h.writeJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Allotment exceeds section capacity", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("CreateEventSection: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not create event section", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Event section created", section))
}

// writeBookingError maps booking service failures to HTTP status codes. The
// insufficient-inventory case keeps its own message so a caller can tell it
// apart from malformed input.
func (h *Handler) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Booking not found", err.Error()))
	case errors.Is(err, inventory.ErrInsufficientInventory):
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("Not enough tickets available", err.Error()))
	case errors.Is(err, inventory.ErrInvalidQuantity):
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid ticket quantity", err.Error()))
	case errors.Is(err, inventory.ErrInvalidTransition):
		h.writeJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Invalid status transition", err.Error()))
	case errors.Is(err, inventory.ErrCapacityExceeded):
		h.writeJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Section capacity exceeded", err.Error()))
	default:
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Booking operation failed", err.Error()))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("encode response: %v", err))
	}
}
