package controllers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/db/models"
)

// View structs shape API responses; persistence models stay internal.

type orderView struct {
	ID                 uuid.UUID             `json:"id"`
	OrderNumber        int64                 `json:"order_number"`
	Channel            string                `json:"channel"`
	Status             string                `json:"status"`
	Currency           string                `json:"currency"`
	TableRef           *string               `json:"table_ref,omitempty"`
	SubtotalCents      int64                 `json:"subtotal_cents"`
	TaxCents           int64                 `json:"tax_cents"`
	TipCents           int64                 `json:"tip_cents"`
	TotalCents         int64                 `json:"total_cents"`
	PaymentRef         *string               `json:"payment_ref,omitempty"`
	Version            int64                 `json:"version"`
	Items              []orderLineItemView   `json:"items,omitempty"`
	LastTransitionedAt *time.Time            `json:"last_transitioned_at,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

type orderLineItemView struct {
	ID             uuid.UUID `json:"id"`
	CatalogRef     string    `json:"catalog_ref"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Modifiers      []string  `json:"modifiers,omitempty"`
	TotalCents     int64     `json:"total_cents"`
}

type statusHistoryView struct {
	ID             uuid.UUID  `json:"id"`
	OrderID        uuid.UUID  `json:"order_id"`
	PreviousStatus *string    `json:"previous_status,omitempty"`
	NewStatus      string     `json:"new_status"`
	ActorChannel   string     `json:"actor_channel"`
	ActorUserID    *uuid.UUID `json:"actor_user_id,omitempty"`
	Note           *string    `json:"note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type checkoutView struct {
	ID                 uuid.UUID  `json:"id"`
	OrderID            uuid.UUID  `json:"order_id"`
	ProviderCheckoutID string     `json:"provider_checkout_id"`
	DeviceID           string     `json:"device_id"`
	AmountCents        int64      `json:"amount_cents"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type paymentAuditView struct {
	ID          uuid.UUID       `json:"id"`
	CheckoutID  uuid.UUID       `json:"checkout_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	Provider    string          `json:"provider"`
	ProviderRef string          `json:"provider_ref"`
	AmountCents int64           `json:"amount_cents"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newOrderView(order *models.Order) orderView {
	view := orderView{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		Channel:            string(order.Channel),
		Status:             string(order.Status),
		Currency:           string(order.Currency),
		TableRef:           order.TableRef,
		SubtotalCents:      order.SubtotalCents,
		TaxCents:           order.TaxCents,
		TipCents:           order.TipCents,
		TotalCents:         order.TotalCents,
		PaymentRef:         order.PaymentRef,
		Version:            order.Version,
		LastTransitionedAt: order.LastTransitionedAt,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, orderLineItemView{
			ID:             item.ID,
			CatalogRef:     item.CatalogRef,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			Modifiers:      []string(item.Modifiers),
			TotalCents:     item.TotalCents,
		})
	}
	return view
}

func newOrderListView(list []models.Order) []orderView {
	views := make([]orderView, 0, len(list))
	for i := range list {
		views = append(views, newOrderView(&list[i]))
	}
	return views
}

func newStatusHistoryView(entries []models.OrderStatusHistory) []statusHistoryView {
	views := make([]statusHistoryView, 0, len(entries))
	for _, entry := range entries {
		var previous *string
		if entry.PreviousStatus != nil {
			value := string(*entry.PreviousStatus)
			previous = &value
		}
		views = append(views, statusHistoryView{
			ID:             entry.ID,
			OrderID:        entry.OrderID,
			PreviousStatus: previous,
			NewStatus:      string(entry.NewStatus),
			ActorChannel:   string(entry.ActorChannel),
			ActorUserID:    entry.ActorUserID,
			Note:           entry.Note,
			CreatedAt:      entry.CreatedAt,
		})
	}
	return views
}

func newCheckoutView(checkout *models.Checkout) checkoutView {
	return checkoutView{
		ID:                 checkout.ID,
		OrderID:            checkout.OrderID,
		ProviderCheckoutID: checkout.ProviderCheckoutID,
		DeviceID:           checkout.DeviceID,
		AmountCents:        checkout.AmountCents,
		Currency:           string(checkout.Currency),
		Status:             string(checkout.Status),
		CompletedAt:        checkout.CompletedAt,
		CanceledAt:         checkout.CanceledAt,
		CreatedAt:          checkout.CreatedAt,
		UpdatedAt:          checkout.UpdatedAt,
	}
}

func newPaymentAuditViews(audits []models.PaymentAudit) []paymentAuditView {
	views := make([]paymentAuditView, 0, len(audits))
	for _, audit := range audits {
		views = append(views, paymentAuditView{
			ID:          audit.ID,
			CheckoutID:  audit.CheckoutID,
			OrderID:     audit.OrderID,
			Provider:    audit.Provider,
			ProviderRef: audit.ProviderRef,
			AmountCents: audit.AmountCents,
			RawResponse: audit.RawResponse,
			CreatedAt:   audit.CreatedAt,
		})
	}
	return views
}
