package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/api/middleware"
	"github.com/mesa-pos/mesa-backend/api/responses"
	"github.com/mesa-pos/mesa-backend/api/validators"
	internalcheckout "github.com/mesa-pos/mesa-backend/internal/checkout"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
)

type createCheckoutRequest struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	DeviceID    string    `json:"device_id" validate:"required"`
	AmountCents *int64    `json:"amount_cents" validate:"omitempty,gt=0"`
}

type cancelCheckoutRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CreateCheckout pushes a payment request to the tenant's terminal device and
// returns the pending checkout for the client to poll.
func CreateCheckout(svc internalcheckout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant identity missing"))
			return
		}

		var req createCheckoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		checkout, err := svc.Create(r.Context(), internalcheckout.CreateInput{
			TenantID:    tenantID,
			OrderID:     req.OrderID,
			DeviceID:    validators.SanitizeString(req.DeviceID, 128),
			AmountCents: req.AmountCents,
			ActorUserID: actorUserID(r),
			ActorRole:   middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutView(checkout))
	}
}

// GetCheckout returns the current checkout state; clients poll this while the
// guest interacts with the terminal.
func GetCheckout(svc internalcheckout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		checkoutID, err := parsePathUUID(r, "checkoutId", "checkout id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		checkout, err := svc.Get(r.Context(), tenantID, checkoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCheckoutView(checkout))
	}
}

// CompleteCheckout settles the checkout after the provider confirms payment.
func CompleteCheckout(svc internalcheckout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		checkoutID, err := parsePathUUID(r, "checkoutId", "checkout id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		checkout, err := svc.Complete(r.Context(), tenantID, checkoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCheckoutView(checkout))
	}
}

// CancelCheckout aborts an active checkout; the order stays payable.
func CancelCheckout(svc internalcheckout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		checkoutID, err := parsePathUUID(r, "checkoutId", "checkout id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelCheckoutRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		checkout, err := svc.Cancel(r.Context(), internalcheckout.CancelInput{
			TenantID:   tenantID,
			CheckoutID: checkoutID,
			Reason:     validators.SanitizeString(req.Reason, 256),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCheckoutView(checkout))
	}
}

// OrderPaymentAudits lists the provider audit rows recorded for an order.
func OrderPaymentAudits(svc internalcheckout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		orderID, err := parsePathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		audits, err := svc.ListPaymentAudits(r.Context(), tenantID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentAuditViews(audits))
	}
}
