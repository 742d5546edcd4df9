package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/config"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
)

func newRecognizerServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *HTTPRecognizer) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	recognizer, err := NewHTTPRecognizer(config.VoiceConfig{NLUEndpoint: server.URL}, logger.New(logger.Options{
		ServiceName: "voice-test",
		Output:      io.Discard,
	}))
	if err != nil {
		t.Fatalf("new recognizer: %v", err)
	}
	return server, recognizer
}

func TestHTTPRecognizerProcessAudioDecodesDelta(t *testing.T) {
	sessionID := uuid.New()
	tenantID := uuid.New()

	_, recognizer := newRecognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/recognize" {
			t.Fatalf("path = %s, want /v1/recognize", r.URL.Path)
		}
		var req recognizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SessionID != sessionID.String() {
			t.Fatalf("session id = %s, want %s", req.SessionID, sessionID)
		}
		if string(req.Audio) != "pcm-bytes" {
			t.Fatalf("audio not carried through: %q", req.Audio)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"transcript": "two espressos",
			"delta": {
				"action": "add_item",
				"item": {"catalog_ref": "espresso", "name": "Espresso", "quantity": 2, "unit_price_cents": 350}
			}
		}`))
	})

	result, err := recognizer.ProcessAudio(context.Background(), AudioInput{
		SessionID: sessionID,
		TenantID:  tenantID,
		Seq:       1,
		Data:      []byte("pcm-bytes"),
	})
	if err != nil {
		t.Fatalf("process audio: %v", err)
	}
	if result.Transcript != "two espressos" {
		t.Fatalf("transcript = %q", result.Transcript)
	}
	if result.Delta == nil || result.Delta.Action != DeltaAddItem {
		t.Fatalf("delta not decoded: %+v", result.Delta)
	}
	if result.Delta.Item == nil || result.Delta.Item.Quantity != 2 {
		t.Fatalf("item not decoded: %+v", result.Delta.Item)
	}
}

func TestHTTPRecognizerFinalizeHitsFinalizePath(t *testing.T) {
	sessionID := uuid.New()

	_, recognizer := newRecognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/finalize" {
			t.Fatalf("path = %s, want /v1/finalize", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"clarification": "did you want oat milk?"}`))
	})

	result, err := recognizer.Finalize(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Clarification != "did you want oat milk?" {
		t.Fatalf("clarification = %q", result.Clarification)
	}
}

func TestHTTPRecognizerMapsServerErrorToDependency(t *testing.T) {
	_, recognizer := newRecognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := recognizer.ProcessAudio(context.Background(), AudioInput{SessionID: uuid.New(), TenantID: uuid.New(), Data: []byte("x")})
	if err == nil {
		t.Fatal("expected error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("error = %v, want dependency code", err)
	}
}

func TestNewHTTPRecognizerRequiresEndpoint(t *testing.T) {
	_, err := NewHTTPRecognizer(config.VoiceConfig{}, logger.New(logger.Options{ServiceName: "voice-test", Output: io.Discard}))
	if err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
