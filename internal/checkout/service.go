package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/internal/orders"
	"github.com/mesa-pos/mesa-backend/pkg/config"
	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	"github.com/mesa-pos/mesa-backend/pkg/enums"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
	"github.com/mesa-pos/mesa-backend/pkg/metrics"
	"github.com/mesa-pos/mesa-backend/pkg/outbox"
	"github.com/mesa-pos/mesa-backend/pkg/outbox/payloads"
	"github.com/mesa-pos/mesa-backend/pkg/square"
)

const providerName = "square"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderService interface {
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
	TransitionTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (*models.Order, error)
}

// Service coordinates terminal payments: it pushes checkouts to the payment
// device through the provider, tracks their status, and settles the order
// when the provider reports completion.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Checkout, error)
	Get(ctx context.Context, tenantID, checkoutID uuid.UUID) (*models.Checkout, error)
	Complete(ctx context.Context, tenantID, checkoutID uuid.UUID) (*models.Checkout, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Checkout, error)
	PollOnce(ctx context.Context, checkout *models.Checkout) error
	ListPaymentAudits(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.PaymentAudit, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	orders   orderService
	terminal square.TerminalAPI
	cfg      config.CheckoutConfig
	log      *logger.Logger
	metrics  *metrics.CheckoutMetrics
}

// NewService builds the checkout coordinator with its required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	orderSvc orderService,
	terminal square.TerminalAPI,
	cfg config.CheckoutConfig,
	log *logger.Logger,
	checkoutMetrics *metrics.CheckoutMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if terminal == nil {
		return nil, fmt.Errorf("terminal api required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		orders:   orderSvc,
		terminal: terminal,
		cfg:      cfg,
		log:      log,
		metrics:  checkoutMetrics,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Checkout, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.DeviceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id required")
	}
	if input.AmountCents != nil && *input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	// A second create for the same order returns the in-flight checkout
	// instead of pushing a duplicate to the device.
	if existing, err := s.repo.FindActiveByOrder(ctx, input.TenantID, input.OrderID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up active checkout")
	}

	order, err := s.orders.Get(ctx, input.TenantID, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot take a payment", order.Status))
	}

	// The advisory amount is verified before any money movement is
	// requested; the charge itself always uses the stored order total.
	if input.AmountCents != nil && !s.withinTolerance(order.TotalCents, *input.AmountCents) {
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "requested amount differs from order total").
			WithDetails(map[string]int64{
				"order_total_cents": order.TotalCents,
				"requested_cents":   *input.AmountCents,
			})
	}

	providerCheckout, err := s.terminal.CreateTerminalCheckout(ctx, square.TerminalCheckoutCreateParams{
		DeviceID:    input.DeviceID,
		AmountCents: order.TotalCents,
		Currency:    order.Currency.String(),
		ReferenceID: order.ID.String(),
		Note:        fmt.Sprintf("order %d", order.OrderNumber),
	})
	if err != nil {
		return nil, err
	}
	providerID := square.TerminalCheckoutID(providerCheckout)
	if providerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provider returned checkout without id")
	}

	var created *models.Checkout
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		checkout := &models.Checkout{
			ProviderCheckoutID: providerID,
			OrderID:            input.OrderID,
			TenantID:           input.TenantID,
			DeviceID:           input.DeviceID,
			AmountCents:        order.TotalCents,
			Currency:           order.Currency,
			Status:             enums.CheckoutStatusPending,
		}
		if _, err := repo.Create(ctx, checkout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist checkout")
		}
		if err := s.emitStatusChange(ctx, tx, checkout); err != nil {
			return err
		}
		created = checkout
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"checkout_id": created.ID.String(),
		"order_id":    input.OrderID.String(),
		"device_id":   input.DeviceID,
	}), "terminal checkout created")
	return created, nil
}

func (s *service) Get(ctx context.Context, tenantID, checkoutID uuid.UUID) (*models.Checkout, error) {
	checkout, err := s.repo.FindByID(ctx, tenantID, checkoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout")
	}
	return checkout, nil
}

// Complete settles the checkout. The provider is consulted again so a forged
// or stale completion request can never confirm an unpaid order.
func (s *service) Complete(ctx context.Context, tenantID, checkoutID uuid.UUID) (*models.Checkout, error) {
	checkout, err := s.Get(ctx, tenantID, checkoutID)
	if err != nil {
		return nil, err
	}
	if checkout.Status == enums.CheckoutStatusCompleted {
		return checkout, nil
	}
	if checkout.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("checkout already settled as %s", checkout.Status))
	}

	providerCheckout, err := s.terminal.GetTerminalCheckout(ctx, checkout.ProviderCheckoutID)
	if err != nil {
		return nil, err
	}
	if status := square.TerminalCheckoutStatus(providerCheckout); status != square.TerminalStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("provider reports checkout as %s, not completed", status))
	}
	charged := square.TerminalCheckoutAmount(providerCheckout)
	if !s.withinTolerance(charged, checkout.AmountCents) {
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "provider charged amount differs from checkout").
			WithDetails(map[string]int64{
				"checkout_cents": checkout.AmountCents,
				"charged_cents":  charged,
			})
	}

	return s.settleCompleted(ctx, checkout, providerCheckout)
}

// settleCompleted writes the completion, its audit row, and the order
// confirmation in one transaction.
func (s *service) settleCompleted(ctx context.Context, checkout *models.Checkout, providerCheckout *sq.TerminalCheckout) (*models.Checkout, error) {
	now := time.Now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		affected, err := repo.UpdateStatusIfActive(ctx, checkout.ID, map[string]any{
			"status":       enums.CheckoutStatusCompleted,
			"completed_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete checkout")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "checkout settled concurrently")
		}

		raw, err := json.Marshal(providerCheckout)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode provider response")
		}
		audit := &models.PaymentAudit{
			CheckoutID:  checkout.ID,
			OrderID:     checkout.OrderID,
			TenantID:    checkout.TenantID,
			Provider:    providerName,
			ProviderRef: checkout.ProviderCheckoutID,
			AmountCents: checkout.AmountCents,
			RawResponse: raw,
		}
		if err := repo.CreatePaymentAudit(ctx, audit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write payment audit")
		}

		paymentRef := checkout.ProviderCheckoutID
		if _, err := s.orders.TransitionTx(ctx, tx, orders.TransitionInput{
			TenantID:     checkout.TenantID,
			OrderID:      checkout.OrderID,
			TargetStatus: enums.OrderStatusConfirmed,
			ActorChannel: enums.OrderChannelTerminal,
			ActorRole:    enums.RoleService.String(),
			PaymentRef:   &paymentRef,
		}); err != nil {
			return err
		}

		checkout.Status = enums.CheckoutStatusCompleted
		checkout.CompletedAt = &now
		return s.emitStatusChange(ctx, tx, checkout)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOutcome(enums.CheckoutStatusCompleted.String())
	s.metrics.ObserveDuration(enums.CheckoutStatusCompleted.String(), now.Sub(checkout.CreatedAt))
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"checkout_id": checkout.ID.String(),
		"order_id":    checkout.OrderID.String(),
	}), "terminal checkout completed")
	return checkout, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Checkout, error) {
	checkout, err := s.Get(ctx, input.TenantID, input.CheckoutID)
	if err != nil {
		return nil, err
	}
	if checkout.Status == enums.CheckoutStatusCanceled {
		return checkout, nil
	}
	if checkout.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("checkout already settled as %s", checkout.Status))
	}

	if _, err := s.terminal.CancelTerminalCheckout(ctx, checkout.ProviderCheckoutID); err != nil {
		// The device may already be past the point of cancellation; the next
		// poll will pick up whatever the provider decided.
		s.log.Error(ctx, "provider cancel failed", err)
		return nil, err
	}

	return s.settleCanceled(ctx, checkout, input.Reason)
}

func (s *service) settleCanceled(ctx context.Context, checkout *models.Checkout, reason string) (*models.Checkout, error) {
	now := time.Now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateStatusIfActive(ctx, checkout.ID, map[string]any{
			"status":      enums.CheckoutStatusCanceled,
			"canceled_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel checkout")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "checkout settled concurrently")
		}
		checkout.Status = enums.CheckoutStatusCanceled
		checkout.CanceledAt = &now
		return s.emitStatusChange(ctx, tx, checkout)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOutcome(enums.CheckoutStatusCanceled.String())
	s.metrics.ObserveDuration(enums.CheckoutStatusCanceled.String(), now.Sub(checkout.CreatedAt))
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"checkout_id": checkout.ID.String(),
		"reason":      reason,
	}), "terminal checkout canceled")
	return checkout, nil
}

func (s *service) markFailed(ctx context.Context, checkout *models.Checkout) error {
	now := time.Now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateStatusIfActive(ctx, checkout.ID, map[string]any{
			"status": enums.CheckoutStatusFailed,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail checkout")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "checkout settled concurrently")
		}
		checkout.Status = enums.CheckoutStatusFailed
		return s.emitStatusChange(ctx, tx, checkout)
	})
	if err != nil {
		return err
	}
	s.metrics.IncOutcome(enums.CheckoutStatusFailed.String())
	s.metrics.ObserveDuration(enums.CheckoutStatusFailed.String(), now.Sub(checkout.CreatedAt))
	return nil
}

// PollOnce reconciles one active checkout against the provider. Checkouts
// older than the poll timeout are cancelled rather than polled forever.
func (s *service) PollOnce(ctx context.Context, checkout *models.Checkout) error {
	if checkout == nil || checkout.Status.IsTerminal() {
		return nil
	}

	if time.Since(checkout.CreatedAt) > s.cfg.PollTimeout {
		s.metrics.IncPoll("timeout")
		_, err := s.Cancel(ctx, CancelInput{
			TenantID:   checkout.TenantID,
			CheckoutID: checkout.ID,
			Reason:     "poll timeout",
		})
		return err
	}

	providerCheckout, err := s.terminal.GetTerminalCheckout(ctx, checkout.ProviderCheckoutID)
	if err != nil {
		s.metrics.IncPoll("error")
		return err
	}

	switch square.TerminalCheckoutStatus(providerCheckout) {
	case square.TerminalStatusPending, square.TerminalStatusCancelRequested:
		s.metrics.IncPoll("unchanged")
		return nil
	case square.TerminalStatusInProgress:
		s.metrics.IncPoll("in_progress")
		return s.markInProgress(ctx, checkout)
	case square.TerminalStatusCompleted:
		s.metrics.IncPoll("completed")
		charged := square.TerminalCheckoutAmount(providerCheckout)
		if !s.withinTolerance(charged, checkout.AmountCents) {
			s.log.Error(ctx, "provider charged amount differs from checkout",
				fmt.Errorf("checkout %s: charged %d, expected %d", checkout.ID, charged, checkout.AmountCents))
			return s.markFailed(ctx, checkout)
		}
		_, err := s.settleCompleted(ctx, checkout, providerCheckout)
		return err
	case square.TerminalStatusCanceled:
		s.metrics.IncPoll("canceled")
		_, err := s.settleCanceled(ctx, checkout, "provider reported canceled")
		return err
	default:
		s.metrics.IncPoll("unknown")
		return nil
	}
}

func (s *service) markInProgress(ctx context.Context, checkout *models.Checkout) error {
	if checkout.Status == enums.CheckoutStatusInProgress {
		return nil
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateStatusIfActive(ctx, checkout.ID, map[string]any{
			"status": enums.CheckoutStatusInProgress,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark checkout in progress")
		}
		if affected == 0 {
			return nil
		}
		checkout.Status = enums.CheckoutStatusInProgress
		return s.emitStatusChange(ctx, tx, checkout)
	})
}

func (s *service) ListPaymentAudits(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.PaymentAudit, error) {
	rows, err := s.repo.ListPaymentAudits(ctx, tenantID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment audits")
	}
	return rows, nil
}

func (s *service) withinTolerance(a, b int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(s.cfg.ToleranceCents)
}

func (s *service) emitStatusChange(ctx context.Context, tx *gorm.DB, checkout *models.Checkout) error {
	event := outbox.DomainEvent{
		TenantID:      checkout.TenantID,
		EventType:     enums.EventCheckoutStatusChanged,
		AggregateType: enums.AggregateCheckout,
		AggregateID:   checkout.ID,
		Version:       1,
		Data: payloads.CheckoutStatusChangedEvent{
			CheckoutID:  checkout.ID,
			OrderID:     checkout.OrderID,
			Status:      checkout.Status,
			AmountCents: checkout.AmountCents,
			DeviceID:    checkout.DeviceID,
			ChangedAt:   time.Now().UTC(),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit checkout status event")
	}
	return nil
}
