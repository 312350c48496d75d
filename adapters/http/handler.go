// Package http provides the HTTP API for the entitlement service.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/replygate/replygate/adapters/metrics"
	"github.com/replygate/replygate/app"
	"github.com/replygate/replygate/ports"
)

// ErrorResponseBody represents an error response body.
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details.
type ErrorDetail struct {
	Code    string `json:"code" example:"missing_device_id"`
	Message string `json:"message" example:"deviceId is required"`
}

// InitResponse is the response of POST /api/user/init.
type InitResponse struct {
	Success               bool    `json:"success" example:"true"`
	IsNew                 bool    `json:"isNew" example:"true"`
	IsPro                 bool    `json:"isPro" example:"false"`
	SubscriptionExpiresAt *string `json:"subscriptionExpiresAt"`
	MessagesThisMonth     int     `json:"messagesThisMonth" example:"0"`
	MessagesResetDate     *string `json:"messagesResetDate"`
	MessagesRemaining     *int    `json:"messagesRemaining"`
}

// StatusResponse is the response of GET /api/user/status.
type StatusResponse struct {
	Success               bool    `json:"success" example:"true"`
	IsPro                 bool    `json:"isPro" example:"true"`
	SubscriptionExpiresAt *string `json:"subscriptionExpiresAt"`
}

// VerifyResponse is the response of POST /api/user/verify-purchase.
type VerifyResponse struct {
	Success               bool    `json:"success" example:"true"`
	IsPro                 bool    `json:"isPro" example:"true"`
	SubscriptionExpiresAt *string `json:"subscriptionExpiresAt"`
	MessagesRemaining     *int    `json:"messagesRemaining"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
	Service string `json:"service" example:"replygate"`
}

// UserHandler exposes the device entitlement API.
type UserHandler struct {
	entitlements  *app.EntitlementService
	purchases     *app.PurchaseService
	notifications *app.NotificationService
	logger        zerolog.Logger
	metrics       *metrics.Collector
	verifierName  string
}

// NewUserHandler creates a new user API handler.
func NewUserHandler(
	entitlements *app.EntitlementService,
	purchases *app.PurchaseService,
	notifications *app.NotificationService,
	logger zerolog.Logger,
) *UserHandler {
	return &UserHandler{
		entitlements:  entitlements,
		purchases:     purchases,
		notifications: notifications,
		logger:        logger,
	}
}

// WithMetrics attaches a metrics collector.
func (h *UserHandler) WithMetrics(m *metrics.Collector, verifierName string) *UserHandler {
	h.metrics = m
	h.verifierName = verifierName
	return h
}

// Init registers a device and returns its entitlement state.
//
//	@Summary		Initialize a device
//	@Description	Registers the device on first contact and returns its entitlement snapshot
//	@Tags			User
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object{deviceId=string}	true	"Device identity"
//	@Success		200		{object}	InitResponse
//	@Failure		400		{object}	ErrorResponseBody	"Missing deviceId"
//	@Router			/api/user/init [post]
func (h *UserHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"deviceId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "missing_device_id", "deviceId is required")
		return
	}

	snap, err := h.entitlements.Init(r.Context(), req.DeviceID)
	if err != nil {
		h.internalError(w, err, "init failed")
		return
	}

	remaining := snap.Remaining
	resp := InitResponse{
		Success:               true,
		IsNew:                 snap.IsNew,
		IsPro:                 snap.PaidActive,
		SubscriptionExpiresAt: timePtr(snap.PaidUntil),
		MessagesThisMonth:     snap.MessagesUsed,
		MessagesResetDate:     timeValuePtr(snap.WindowResetAt),
		MessagesRemaining:     &remaining,
	}
	if snap.PaidActive {
		// Paid devices have no meaningful remaining count.
		resp.MessagesRemaining = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

// Status returns the current entitlement of a known device.
//
//	@Summary		Device subscription status
//	@Description	Returns whether the device currently holds an active paid subscription
//	@Tags			User
//	@Produce		json
//	@Param			deviceId	query		string	true	"Device identity"
//	@Success		200			{object}	StatusResponse
//	@Failure		400			{object}	ErrorResponseBody	"Missing deviceId"
//	@Failure		404			{object}	ErrorResponseBody	"Unknown device"
//	@Router			/api/user/status [get]
func (h *UserHandler) Status(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "missing_device_id", "deviceId is required")
		return
	}

	snap, err := h.entitlements.Status(r.Context(), deviceID)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown_device", "device is not registered")
		return
	}
	if err != nil {
		h.internalError(w, err, "status failed")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Success:               true,
		IsPro:                 snap.PaidActive,
		SubscriptionExpiresAt: timePtr(snap.PaidUntil),
	})
}

// VerifyPurchase activates the paid tier from a client-reported purchase.
//
//	@Summary		Verify a purchase and activate the paid tier
//	@Description	Verifies the purchase token against the billing platform; unverifiable tokens are refused
//	@Tags			User
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object{deviceId=string,purchaseToken=string}	true	"Device identity and purchase token"
//	@Success		200		{object}	VerifyResponse
//	@Failure		400		{object}	ErrorResponseBody	"Missing deviceId or purchaseToken"
//	@Failure		402		{object}	ErrorResponseBody	"Verification refused"
//	@Failure		404		{object}	ErrorResponseBody	"Unknown device"
//	@Router			/api/user/verify-purchase [post]
func (h *UserHandler) VerifyPurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID      string `json:"deviceId"`
		PurchaseToken string `json:"purchaseToken"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "missing_device_id", "deviceId is required")
		return
	}
	if req.PurchaseToken == "" {
		writeError(w, http.StatusBadRequest, "missing_purchase_token", "purchaseToken is required")
		return
	}

	snap, err := h.purchases.ActivatePaid(r.Context(), req.DeviceID, req.PurchaseToken)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown_device", "device is not registered")
		return
	case errors.Is(err, ports.ErrVerificationRefused):
		h.countVerification("refused")
		writeError(w, http.StatusPaymentRequired, "verification_refused", "purchase could not be verified")
		return
	case err != nil:
		h.countVerification("error")
		h.internalError(w, err, "verify purchase failed")
		return
	}

	h.countVerification("ok")
	writeJSON(w, http.StatusOK, VerifyResponse{
		Success:               true,
		IsPro:                 snap.PaidActive,
		SubscriptionExpiresAt: timePtr(snap.PaidUntil),
		MessagesRemaining:     nil, // unlimited while paid
	})
}

// GoogleWebhook receives Play billing notifications via Pub/Sub push.
// It always acks with 200: a non-2xx answer only makes the platform
// redeliver, and every inbound body is already preserved or logged.
//
//	@Summary		Google Play billing webhook
//	@Description	Accepts RTDN Pub/Sub push notifications; always responds 200
//	@Tags			Webhook
//	@Accept			json
//	@Produce		plain
//	@Success		200	{string}	string	"OK"
//	@Router			/api/user/google-webhook [post]
func (h *UserHandler) GoogleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error().Err(err).Msg("webhook body read failed")
		ack(w)
		return
	}

	res, err := h.notifications.HandleNotification(r.Context(), body)
	if err != nil {
		h.logger.Error().Err(err).Msg("webhook processing failed")
	}
	h.countNotification(res)

	ack(w)
}

func (h *UserHandler) countVerification(result string) {
	if h.metrics == nil {
		return
	}
	h.metrics.VerificationResults.WithLabelValues(h.verifierName, result).Inc()
}

func (h *UserHandler) countNotification(res app.NotificationResult) {
	if h.metrics == nil {
		return
	}
	switch {
	case res.Duplicate:
		h.metrics.WebhookDuplicates.Inc()
	case res.Unmatched:
		h.metrics.WebhookUnmatched.Inc()
	case res.Test:
		// not counted
	default:
		h.metrics.WebhookNotifications.WithLabelValues(res.Action.String()).Inc()
	}
	if res.Disabled {
		h.metrics.FreeTierDisabled.Inc()
	}
}

func (h *UserHandler) internalError(w http.ResponseWriter, err error, msg string) {
	h.logger.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponseBody{Error: ErrorDetail{Code: code, Message: message}})
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func timeValuePtr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	return timePtr(&t)
}
