package checkout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/mesa-pos/mesa-backend/pkg/config"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
)

const pollBatchSize = 100

// PollerParams configure the checkout poller.
type PollerParams struct {
	Logger  *logger.Logger
	Repo    Repository
	Service Service
	Config  config.CheckoutConfig
}

// Poller drives active checkouts to a terminal status by polling the
// provider on a fixed cadence. One instance per process is enough; the
// settle paths tolerate concurrent pollers through their guarded updates.
type Poller struct {
	logg     *logger.Logger
	repo     Repository
	service  Service
	interval time.Duration
}

// NewPoller builds the checkout poller.
func NewPoller(params PollerParams) (*Poller, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if params.Service == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	interval := params.Config.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		logg:     params.Logger,
		repo:     params.Repo,
		service:  params.Service,
		interval: interval,
	}, nil
}

// Run polls until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logg.Info(ctx, "checkout poller context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := p.RunCycle(ctx); err != nil {
				p.logg.Error(ctx, "checkout poll cycle failed", err)
			}
		}
	}
}

// RunCycle reconciles every active checkout once.
func (p *Poller) RunCycle(ctx context.Context) error {
	active, err := p.repo.ListActive(ctx, pollBatchSize)
	if err != nil {
		return fmt.Errorf("list active checkouts: %w", err)
	}

	var errs error
	for i := range active {
		checkout := active[i]
		pollCtx := p.logg.WithField(ctx, "checkout_id", checkout.ID.String())
		if err := p.service.PollOnce(pollCtx, &checkout); err != nil {
			p.logg.Error(pollCtx, "checkout poll failed", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
