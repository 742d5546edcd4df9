package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/api/middleware"
	"github.com/mesa-pos/mesa-backend/api/responses"
	"github.com/mesa-pos/mesa-backend/api/validators"
	internalorders "github.com/mesa-pos/mesa-backend/internal/orders"
	"github.com/mesa-pos/mesa-backend/pkg/enums"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
)

const (
	defaultOrderListLimit = 50
	maxOrderListLimit     = 200
)

type createOrderRequest struct {
	Channel          string                   `json:"channel" validate:"required"`
	TableRef         *string                  `json:"table_ref,omitempty"`
	TipCents         int64                    `json:"tip_cents" validate:"gte=0"`
	Items            []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ClientTotalCents *int64                   `json:"client_total_cents,omitempty"`
}

type createOrderItemRequest struct {
	CatalogRef     string   `json:"catalog_ref" validate:"required"`
	Name           string   `json:"name" validate:"required"`
	Quantity       int      `json:"quantity" validate:"required,gt=0"`
	UnitPriceCents int64    `json:"unit_price_cents" validate:"gte=0"`
	Modifiers      []string `json:"modifiers,omitempty"`
}

type transitionOrderRequest struct {
	TargetStatus string  `json:"target_status" validate:"required"`
	Note         *string `json:"note,omitempty"`
}

// CreateOrder commits a new order from any ordering surface. The channel in
// the body names the surface; the actor identity comes from the capability
// token.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant identity missing"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		channel, err := enums.ParseOrderChannel(req.Channel)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel"))
			return
		}

		input := internalorders.CreateOrderInput{
			TenantID:         tenantID,
			Channel:          channel,
			TableRef:         req.TableRef,
			TipCents:         req.TipCents,
			ClientTotalCents: req.ClientTotalCents,
			ActorUserID:      actorUserID(r),
			ActorRole:        middleware.RoleFromContext(r.Context()),
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalorders.LineItemInput{
				CatalogRef:     validators.SanitizeString(item.CatalogRef, 128),
				Name:           validators.SanitizeString(item.Name, 256),
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
				Modifiers:      item.Modifiers,
			})
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderView(order))
	}
}

// TransitionOrder moves an order through its lifecycle. Illegal moves come
// back as state conflicts with the allowed next statuses in the details.
func TransitionOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant identity missing"))
			return
		}

		orderID, err := parsePathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderStatus(req.TargetStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		order, err := svc.Transition(r.Context(), internalorders.TransitionInput{
			TenantID:     tenantID,
			OrderID:      orderID,
			TargetStatus: target,
			ActorChannel: actorChannel(r),
			ActorUserID:  actorUserID(r),
			ActorRole:    middleware.RoleFromContext(r.Context()),
			Note:         req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderView(order))
	}
}

func GetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		orderID, err := parsePathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), tenantID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderView(order))
	}
}

func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())

		limit, err := validators.ParseQueryInt(r, "limit", defaultOrderListLimit, 1, maxOrderListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := internalorders.OrderFilters{Limit: limit}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseOrderStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		list, err := svc.List(r.Context(), tenantID, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListView(list))
	}
}

// OrderHistory returns the append-only audit trail for one order.
func OrderHistory(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		orderID, err := parsePathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.History(r.Context(), tenantID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newStatusHistoryView(entries))
	}
}

func parsePathUUID(r *http.Request, param, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

func actorUserID(r *http.Request) *uuid.UUID {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil || claims.Subject == "" {
		return nil
	}
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil
	}
	return &subject
}

// actorChannel maps the caller's role onto the channel recorded in the audit
// trail. Devices act for the surface they run, everything else is staff.
func actorChannel(r *http.Request) enums.OrderChannel {
	switch enums.ActorRole(middleware.RoleFromContext(r.Context())) {
	case enums.RoleDevice:
		return enums.OrderChannelTouch
	default:
		return enums.OrderChannelStaff
	}
}
