package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	"github.com/mesa-pos/mesa-backend/pkg/enums"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
	"github.com/mesa-pos/mesa-backend/pkg/outbox"
	"github.com/mesa-pos/mesa-backend/pkg/outbox/payloads"
)

// AmountToleranceCents is the rounding slack allowed between a client's
// advisory total and the server-recomputed one.
const AmountToleranceCents = 1

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type tenantSource interface {
	ResolveID(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
}

// Service owns the order lifecycle: validated creation, state-machine
// transitions with audit entries, and server-side money computation.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	TransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error)
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, tenantID uuid.UUID, filters OrderFilters) ([]models.Order, error)
	History(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	RecomputeTotals(ctx context.Context, tenantID, orderID uuid.UUID) (Totals, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	tenants tenantSource
}

// NewService builds the order state machine with its required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, tenants tenantSource) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if tenants == nil {
		return nil, fmt.Errorf("tenant source required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, tenants: tenants}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant identity missing")
	}
	if !input.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order channel")
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}
	if input.TipCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip must not be negative")
	}

	tenant, err := s.tenants.ResolveID(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}

	totals := ComputeTotals(input.Items, tenant.TaxRateBPS, input.TipCents)
	if input.ClientTotalCents != nil {
		if diff := totals.TotalCents - *input.ClientTotalCents; diff > AmountToleranceCents || diff < -AmountToleranceCents {
			return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "client total differs from computed total").
				WithDetails(map[string]int64{
					"computed_total_cents": totals.TotalCents,
					"client_total_cents":   *input.ClientTotalCents,
				})
		}
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		number, err := repo.NextOrderNumber(ctx, input.TenantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order := &models.Order{
			TenantID:      input.TenantID,
			OrderNumber:   number,
			Channel:       input.Channel,
			Status:        enums.OrderStatusNew,
			Currency:      enums.CurrencyUSD,
			TableRef:      input.TableRef,
			SubtotalCents: totals.SubtotalCents,
			TaxCents:      totals.TaxCents,
			TipCents:      totals.TipCents,
			TotalCents:    totals.TotalCents,
			Version:       1,
		}
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}

		items := make([]models.OrderLineItem, 0, len(input.Items))
		for _, item := range input.Items {
			items = append(items, models.OrderLineItem{
				OrderID:        order.ID,
				CatalogRef:     item.CatalogRef,
				Name:           item.Name,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
				Modifiers:      item.Modifiers,
				TotalCents:     int64(item.Quantity) * item.UnitPriceCents,
			})
		}
		if err := repo.CreateLineItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist line items")
		}
		order.Items = items

		history := &models.OrderStatusHistory{
			OrderID:      order.ID,
			TenantID:     input.TenantID,
			NewStatus:    enums.OrderStatusNew,
			ActorChannel: input.Channel,
			ActorUserID:  input.ActorUserID,
		}
		if err := repo.AppendStatusHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		event := outbox.DomainEvent{
			TenantID:      input.TenantID,
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(input.Channel, input.ActorUserID, input.ActorRole),
			Version:       1,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: formatOrderNumber(order.OrderNumber),
				Channel:     order.Channel,
				Status:      order.Status,
				TableRef:    order.TableRef,
				TotalCents:  order.TotalCents,
				ItemCount:   len(items),
				CreatedAt:   order.CreatedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.TargetStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if !input.ActorChannel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid actor channel")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.TransitionTx(ctx, tx, input)
		if err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TransitionTx applies a transition inside an already-open transaction. Used
// when the status change must commit atomically with other writes, such as a
// completed payment.
func (s *service) TransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.TargetStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if !input.ActorChannel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid actor channel")
	}

	repo := s.repo.WithTx(tx)

	order, err := repo.FindByID(ctx, input.TenantID, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	previous := order.Status
	if !previous.CanTransitionTo(input.TargetStatus) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("transition %s -> %s is not allowed", previous, input.TargetStatus)).
			WithDetails(map[string]string{
				"current_status": previous.String(),
				"target_status":  input.TargetStatus.String(),
			})
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":               input.TargetStatus,
		"last_transitioned_at": now,
	}
	if input.PaymentRef != nil {
		updates["payment_ref"] = *input.PaymentRef
	}
	affected, err := repo.UpdateStatusIfVersion(ctx, input.TenantID, input.OrderID, order.Version, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently, re-read and retry")
	}

	history := &models.OrderStatusHistory{
		OrderID:        order.ID,
		TenantID:       input.TenantID,
		PreviousStatus: &previous,
		NewStatus:      input.TargetStatus,
		ActorChannel:   input.ActorChannel,
		ActorUserID:    input.ActorUserID,
		Note:           input.Note,
	}
	if err := repo.AppendStatusHistory(ctx, history); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
	}

	event := outbox.DomainEvent{
		TenantID:      input.TenantID,
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(input.ActorChannel, input.ActorUserID, input.ActorRole),
		Version:       1,
		OccurredAt:    now,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			OrderNumber:    formatOrderNumber(order.OrderNumber),
			PreviousStatus: previous,
			NewStatus:      input.TargetStatus,
			ActorChannel:   input.ActorChannel,
			Note:           stringOrEmpty(input.Note),
			TransitionedAt: now,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status changed event")
	}

	order.Status = input.TargetStatus
	order.Version++
	order.LastTransitionedAt = &now
	if input.PaymentRef != nil {
		order.PaymentRef = input.PaymentRef
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, filters OrderFilters) ([]models.Order, error) {
	rows, err := s.repo.ListByTenant(ctx, tenantID, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

func (s *service) History(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	rows, err := s.repo.ListStatusHistory(ctx, tenantID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list status history")
	}
	return rows, nil
}

// RecomputeTotals re-derives an order's money from its stored line items and
// the tenant's current tax rate. It never mutates the order.
func (s *service) RecomputeTotals(ctx context.Context, tenantID, orderID uuid.UUID) (Totals, error) {
	order, err := s.Get(ctx, tenantID, orderID)
	if err != nil {
		return Totals{}, err
	}
	tenant, err := s.tenants.ResolveID(ctx, tenantID)
	if err != nil {
		return Totals{}, err
	}
	items := make([]LineItemInput, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, LineItemInput{
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return ComputeTotals(items, tenant.TaxRateBPS, order.TipCents), nil
}

// ComputeTotals sums line items and applies the tenant tax rate (basis
// points), rounding tax half away from zero to whole cents.
func ComputeTotals(items []LineItemInput, taxRateBPS int, tipCents int64) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += int64(item.Quantity) * item.UnitPriceCents
	}
	tax := decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(int64(taxRateBPS))).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TipCents:      tipCents,
		TotalCents:    subtotal + tax + tipCents,
	}
}

func validateItems(items []LineItemInput) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for i, item := range items {
		if strings.TrimSpace(item.CatalogRef) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d missing catalog reference", i))
		}
		if strings.TrimSpace(item.Name) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d missing name", i))
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d quantity must be positive", i))
		}
		if item.UnitPriceCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d unit price must not be negative", i))
		}
	}
	return nil
}

func actorRef(channel enums.OrderChannel, userID *uuid.UUID, role string) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID:  userID,
		Channel: channel.String(),
		Role:    role,
	}
}

func formatOrderNumber(n int64) string {
	return fmt.Sprintf("A-%04d", n)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
