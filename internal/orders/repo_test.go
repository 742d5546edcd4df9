package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	"github.com/mesa-pos/mesa-backend/pkg/enums"
	"github.com/mesa-pos/mesa-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  order_number INTEGER NOT NULL,
  channel TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'new',
  currency TEXT NOT NULL DEFAULT 'USD',
  table_ref TEXT,
  subtotal_cents INTEGER NOT NULL,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  tip_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  payment_ref TEXT,
  version INTEGER NOT NULL DEFAULT 1,
  last_transitioned_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  catalog_ref TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  modifiers TEXT NOT NULL DEFAULT '[]',
  total_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	history := `
CREATE TABLE IF NOT EXISTS order_status_history (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  previous_status TEXT,
  new_status TEXT NOT NULL,
  actor_channel TEXT NOT NULL,
  actor_user_id TEXT,
  note TEXT,
  created_at DATETIME
);`
	for _, stmt := range []string{orders, lineItems, history} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, tenantID uuid.UUID, number int64, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		TenantID:      tenantID,
		OrderNumber:   number,
		Channel:       enums.OrderChannelTouch,
		Status:        status,
		Currency:      enums.CurrencyUSD,
		SubtotalCents: 850,
		TaxCents:      68,
		TotalCents:    918,
		Version:       1,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryCreateAndFind(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	order := seedOrder(t, db, tenantID, 1, enums.OrderStatusNew)
	require.NoError(t, repo.CreateLineItems(ctx, []models.OrderLineItem{
		{
			ID:             uuid.New(),
			OrderID:        order.ID,
			CatalogRef:     "item_burger",
			Name:           "Burger",
			Quantity:       1,
			UnitPriceCents: 500,
			Modifiers:      types.StringSlice{"no onions"},
			TotalCents:     500,
		},
	}))

	found, err := repo.FindByID(ctx, tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, types.StringSlice{"no onions"}, found.Items[0].Modifiers)

	_, err = repo.FindByID(ctx, uuid.New(), order.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListByTenant(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	seedOrder(t, db, tenantID, 1, enums.OrderStatusNew)
	seedOrder(t, db, tenantID, 2, enums.OrderStatusPending)
	seedOrder(t, db, uuid.New(), 1, enums.OrderStatusNew)

	rows, err := repo.ListByTenant(ctx, tenantID, OrderFilters{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	pending := enums.OrderStatusPending
	rows, err = repo.ListByTenant(ctx, tenantID, OrderFilters{Status: &pending})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.OrderStatusPending, rows[0].Status)
}

func TestRepositoryNextOrderNumber(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	next, err := repo.NextOrderNumber(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	seedOrder(t, db, tenantID, 7, enums.OrderStatusNew)

	next, err = repo.NextOrderNumber(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), next)

	// numbering is scoped per tenant
	next, err = repo.NextOrderNumber(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)
}

func TestRepositoryUpdateStatusIfVersion(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	order := seedOrder(t, db, tenantID, 1, enums.OrderStatusNew)

	affected, err := repo.UpdateStatusIfVersion(ctx, tenantID, order.ID, 1, map[string]any{
		"status": enums.OrderStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	found, err := repo.FindByID(ctx, tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, found.Status)
	assert.Equal(t, int64(2), found.Version)

	// stale version writes nothing
	affected, err = repo.UpdateStatusIfVersion(ctx, tenantID, order.ID, 1, map[string]any{
		"status": enums.OrderStatusConfirmed,
	})
	require.NoError(t, err)
	assert.Zero(t, affected)

	found, err = repo.FindByID(ctx, tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, found.Status)
}

func TestRepositoryStatusHistoryOrdering(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	order := seedOrder(t, db, tenantID, 1, enums.OrderStatusPending)

	prev := enums.OrderStatusNew
	entries := []*models.OrderStatusHistory{
		{ID: uuid.New(), OrderID: order.ID, TenantID: tenantID, NewStatus: enums.OrderStatusNew, ActorChannel: enums.OrderChannelTouch},
		{ID: uuid.New(), OrderID: order.ID, TenantID: tenantID, PreviousStatus: &prev, NewStatus: enums.OrderStatusPending, ActorChannel: enums.OrderChannelStaff},
	}
	for _, entry := range entries {
		require.NoError(t, repo.AppendStatusHistory(ctx, entry))
	}

	rows, err := repo.ListStatusHistory(ctx, tenantID, order.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].PreviousStatus)
	assert.Equal(t, enums.OrderStatusNew, rows[0].NewStatus)
	require.NotNil(t, rows[1].PreviousStatus)
	assert.Equal(t, enums.OrderStatusNew, *rows[1].PreviousStatus)
}
