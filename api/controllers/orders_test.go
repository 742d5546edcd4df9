package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/api/middleware"
	internalorders "github.com/mesa-pos/mesa-backend/internal/orders"
	pkgauth "github.com/mesa-pos/mesa-backend/pkg/auth"
	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	"github.com/mesa-pos/mesa-backend/pkg/enums"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
	"github.com/mesa-pos/mesa-backend/pkg/types"
)

type stubOrdersService struct {
	create     func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	transition func(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error)
	get        func(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
	list       func(ctx context.Context, tenantID uuid.UUID, filters internalorders.OrderFilters) ([]models.Order, error)
	history    func(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
}

func (s *stubOrdersService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	if s.create != nil {
		return s.create(ctx, input)
	}
	return nil, nil
}

func (s *stubOrdersService) Transition(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error) {
	if s.transition != nil {
		return s.transition(ctx, input)
	}
	return nil, nil
}

func (s *stubOrdersService) TransitionTx(ctx context.Context, tx *gorm.DB, input internalorders.TransitionInput) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersService) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	if s.get != nil {
		return s.get(ctx, tenantID, orderID)
	}
	return nil, nil
}

func (s *stubOrdersService) List(ctx context.Context, tenantID uuid.UUID, filters internalorders.OrderFilters) ([]models.Order, error) {
	if s.list != nil {
		return s.list(ctx, tenantID, filters)
	}
	return nil, nil
}

func (s *stubOrdersService) History(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	if s.history != nil {
		return s.history(ctx, tenantID, orderID)
	}
	return nil, nil
}

func (s *stubOrdersService) RecomputeTotals(ctx context.Context, tenantID, orderID uuid.UUID) (internalorders.Totals, error) {
	panic("not implemented")
}

func testControllerLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

func authedRequest(method, target string, body []byte, tenantID uuid.UUID, subject string) *http.Request {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	claims := &pkgauth.CapabilityClaims{
		TenantID: tenantID,
		Role:     enums.RoleStaff,
		Scopes:   []string{pkgauth.ScopeOrdersCreate, pkgauth.ScopeOrdersRead, pkgauth.ScopeOrdersUpdate},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
		},
	}
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) types.SuccessEnvelope {
	t.Helper()
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return envelope
}

func TestCreateOrderMapsRequestToInput(t *testing.T) {
	tenantID := uuid.New()
	subject := uuid.New()
	var captured internalorders.CreateOrderInput
	svc := &stubOrdersService{
		create: func(_ context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
			captured = input
			return &models.Order{
				ID:       uuid.New(),
				TenantID: input.TenantID,
				Channel:  input.Channel,
				Status:   enums.OrderStatusNew,
			}, nil
		},
	}

	body := []byte(`{
		"channel": "touch",
		"table_ref": "T4",
		"tip_cents": 300,
		"items": [
			{"catalog_ref": "espresso", "name": "Espresso", "quantity": 2, "unit_price_cents": 350}
		],
		"client_total_cents": 1000
	}`)

	req := authedRequest(http.MethodPost, "/api/v1/orders", body, tenantID, subject.String())
	rec := httptest.NewRecorder()
	CreateOrder(svc, testControllerLogger())(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	if captured.TenantID != tenantID {
		t.Fatalf("tenant id = %s, want %s", captured.TenantID, tenantID)
	}
	if captured.Channel != enums.OrderChannelTouch {
		t.Fatalf("channel = %s, want touch", captured.Channel)
	}
	if len(captured.Items) != 1 || captured.Items[0].Quantity != 2 {
		t.Fatalf("items not mapped: %+v", captured.Items)
	}
	if captured.ClientTotalCents == nil || *captured.ClientTotalCents != 1000 {
		t.Fatalf("client total not mapped: %v", captured.ClientTotalCents)
	}
	if captured.ActorUserID == nil || *captured.ActorUserID != subject {
		t.Fatalf("actor user id not taken from token subject")
	}
}

func TestCreateOrderRejectsUnknownChannel(t *testing.T) {
	svc := &stubOrdersService{}
	body := []byte(`{"channel": "drive-thru", "items": [{"catalog_ref": "x", "name": "X", "quantity": 1, "unit_price_cents": 100}]}`)

	req := authedRequest(http.MethodPost, "/api/v1/orders", body, uuid.New(), "")
	rec := httptest.NewRecorder()
	CreateOrder(svc, testControllerLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateOrderRequiresTenant(t *testing.T) {
	svc := &stubOrdersService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	CreateOrder(svc, testControllerLogger())(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTransitionOrderParsesTarget(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()
	var captured internalorders.TransitionInput
	svc := &stubOrdersService{
		transition: func(_ context.Context, input internalorders.TransitionInput) (*models.Order, error) {
			captured = input
			return &models.Order{ID: input.OrderID, TenantID: input.TenantID, Status: input.TargetStatus}, nil
		},
	}

	body := []byte(`{"target_status": "confirmed", "note": "guest confirmed at table"}`)
	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/transition", body, tenantID, "")
	req = withURLParam(req, "orderId", orderID.String())
	rec := httptest.NewRecorder()
	TransitionOrder(svc, testControllerLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if captured.OrderID != orderID {
		t.Fatalf("order id = %s, want %s", captured.OrderID, orderID)
	}
	if captured.TargetStatus != enums.OrderStatusConfirmed {
		t.Fatalf("target = %s, want confirmed", captured.TargetStatus)
	}
	if captured.Note == nil || *captured.Note != "guest confirmed at table" {
		t.Fatalf("note not mapped: %v", captured.Note)
	}
}

func TestTransitionOrderRejectsBadOrderID(t *testing.T) {
	svc := &stubOrdersService{}
	req := authedRequest(http.MethodPost, "/api/v1/orders/not-a-uuid/transition", []byte(`{"target_status":"confirmed"}`), uuid.New(), "")
	req = withURLParam(req, "orderId", "not-a-uuid")
	rec := httptest.NewRecorder()
	TransitionOrder(svc, testControllerLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListOrdersAppliesStatusFilter(t *testing.T) {
	tenantID := uuid.New()
	var captured internalorders.OrderFilters
	svc := &stubOrdersService{
		list: func(_ context.Context, _ uuid.UUID, filters internalorders.OrderFilters) ([]models.Order, error) {
			captured = filters
			return []models.Order{{ID: uuid.New(), TenantID: tenantID, Status: enums.OrderStatusReady}}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/orders?status=ready&limit=5", nil, tenantID, "")
	rec := httptest.NewRecorder()
	ListOrders(svc, testControllerLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.Status == nil || *captured.Status != enums.OrderStatusReady {
		t.Fatalf("status filter not applied: %v", captured.Status)
	}
	if captured.Limit != 5 {
		t.Fatalf("limit = %d, want 5", captured.Limit)
	}
}

func TestOrderHistoryReturnsTrail(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()
	previous := enums.OrderStatusNew
	svc := &stubOrdersService{
		history: func(_ context.Context, _, _ uuid.UUID) ([]models.OrderStatusHistory, error) {
			return []models.OrderStatusHistory{
				{ID: uuid.New(), OrderID: orderID, TenantID: tenantID, NewStatus: enums.OrderStatusPending, PreviousStatus: &previous, ActorChannel: enums.OrderChannelTouch},
			}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/orders/"+orderID.String()+"/history", nil, tenantID, "")
	req = withURLParam(req, "orderId", orderID.String())
	rec := httptest.NewRecorder()
	OrderHistory(svc, testControllerLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	entries, ok := envelope.Data.([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("history payload = %+v, want one entry", envelope.Data)
	}
}
