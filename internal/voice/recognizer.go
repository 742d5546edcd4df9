package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/internal/orders"
	"github.com/mesa-pos/mesa-backend/pkg/config"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
)

const defaultNLUTimeout = 10 * time.Second

// HTTPRecognizer talks to the external speech/NLU service over its JSON API.
// Audio chunks go up base64-encoded; structured results come back.
type HTTPRecognizer struct {
	endpoint string
	client   *http.Client
	logg     *logger.Logger
}

type recognizeRequest struct {
	SessionID string `json:"session_id"`
	TenantID  string `json:"tenant_id"`
	Seq       int64  `json:"seq"`
	Audio     []byte `json:"audio"`
}

type finalizeRequest struct {
	SessionID string `json:"session_id"`
}

type recognizeResponse struct {
	Transcript    string           `json:"transcript,omitempty"`
	Clarification string           `json:"clarification,omitempty"`
	Delta         *orderDeltaFrame `json:"delta,omitempty"`
}

type orderDeltaFrame struct {
	Action   string         `json:"action"`
	Item     *lineItemFrame `json:"item,omitempty"`
	TableRef *string        `json:"table_ref,omitempty"`
}

type lineItemFrame struct {
	CatalogRef     string   `json:"catalog_ref"`
	Name           string   `json:"name"`
	Quantity       int      `json:"quantity"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	Modifiers      []string `json:"modifiers,omitempty"`
}

// NewHTTPRecognizer builds the NLU client from voice configuration.
func NewHTTPRecognizer(cfg config.VoiceConfig, logg *logger.Logger) (*HTTPRecognizer, error) {
	if cfg.NLUEndpoint == "" {
		return nil, fmt.Errorf("voice nlu endpoint required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.NLUTimeout
	if timeout <= 0 {
		timeout = defaultNLUTimeout
	}
	return &HTTPRecognizer{
		endpoint: cfg.NLUEndpoint,
		client:   &http.Client{Timeout: timeout},
		logg:     logg,
	}, nil
}

func (r *HTTPRecognizer) ProcessAudio(ctx context.Context, input AudioInput) (*Result, error) {
	return r.post(ctx, r.endpoint+"/v1/recognize", recognizeRequest{
		SessionID: input.SessionID.String(),
		TenantID:  input.TenantID.String(),
		Seq:       input.Seq,
		Audio:     input.Data,
	})
}

func (r *HTTPRecognizer) Finalize(ctx context.Context, sessionID uuid.UUID) (*Result, error) {
	return r.post(ctx, r.endpoint+"/v1/finalize", finalizeRequest{SessionID: sessionID.String()})
}

func (r *HTTPRecognizer) post(ctx context.Context, url string, payload any) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode recognizer request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build recognizer request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recognizer unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("recognizer returned status %d", resp.StatusCode))
	}

	var decoded recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode recognizer response")
	}
	return decoded.toResult(), nil
}

func (resp recognizeResponse) toResult() *Result {
	result := &Result{
		Transcript:    resp.Transcript,
		Clarification: resp.Clarification,
	}
	if resp.Delta != nil {
		result.Delta = resp.Delta.toDelta()
	}
	return result
}

func (frame *orderDeltaFrame) toDelta() *OrderDelta {
	delta := &OrderDelta{
		Action:   DeltaAction(frame.Action),
		TableRef: frame.TableRef,
	}
	if frame.Item != nil {
		delta.Item = frame.Item.toLineItem()
	}
	return delta
}

func (frame *lineItemFrame) toLineItem() *orders.LineItemInput {
	return &orders.LineItemInput{
		CatalogRef:     frame.CatalogRef,
		Name:           frame.Name,
		Quantity:       frame.Quantity,
		UnitPriceCents: frame.UnitPriceCents,
		Modifiers:      frame.Modifiers,
	}
}
