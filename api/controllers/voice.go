package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mesa-pos/mesa-backend/api/middleware"
	"github.com/mesa-pos/mesa-backend/api/responses"
	"github.com/mesa-pos/mesa-backend/internal/voice"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
)

var voiceUpgrader = websocket.Upgrader{
	ReadBufferSize:  32768,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// VoiceSession upgrades to a WebSocket and runs one voice ordering session
// over it. Audio flows up in binary-carrying JSON frames; transcripts,
// clarifications, and flow-control signals flow back.
func VoiceSession(channel *voice.Channel, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if channel == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voice channel unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant identity missing"))
			return
		}

		sock, err := voiceUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logg.Warn(logg.WithTenantID(r.Context(), tenantID.String()), "websocket upgrade failed")
			return
		}

		connectionID := uuid.New()
		ctx := logg.WithConnectionID(logg.WithTenantID(r.Context(), tenantID.String()), connectionID.String())

		if err := channel.Serve(ctx, sock, tenantID, connectionID, actorUserID(r)); err != nil {
			logg.Error(ctx, "voice session ended with error", err)
		}
	}
}
