package voice

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/internal/orders"
	"github.com/mesa-pos/mesa-backend/pkg/config"
	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	"github.com/mesa-pos/mesa-backend/pkg/enums"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
	"github.com/mesa-pos/mesa-backend/pkg/metrics"
)

const (
	defaultCreditLimit = 3
	defaultBufferCap   = 1 << 20
	defaultIdleTimeout = 30 * time.Second
	defaultMaxChunk    = 64 << 10
)

// socket is the subset of *websocket.Conn the channel needs. Tests
// substitute an in-memory implementation.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// syncSocket serializes frame writes. The read loop and the chunk
// processor both write to the same connection.
type syncSocket struct {
	mu sync.Mutex
	socket
}

func (s *syncSocket) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socket.WriteJSON(v)
}

type orderWriter interface {
	Create(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
	Transition(ctx context.Context, input orders.TransitionInput) (*models.Order, error)
}

// Channel moves a voice client's audio to the NLU collaborator under
// credit-based flow control and translates structured deltas into order
// state machine calls.
type Channel struct {
	cfg     config.VoiceConfig
	logg    *logger.Logger
	metrics *metrics.VoiceMetrics
	nlu     Recognizer
	orders  orderWriter
}

// NewChannel builds the audio streaming channel. Metrics may be nil.
func NewChannel(cfg config.VoiceConfig, nlu Recognizer, orderSvc orderWriter, logg *logger.Logger, m *metrics.VoiceMetrics) (*Channel, error) {
	if nlu == nil {
		return nil, fmt.Errorf("nlu recognizer required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.CreditLimit <= 0 {
		cfg.CreditLimit = defaultCreditLimit
	}
	if cfg.BufferCapBytes <= 0 {
		cfg.BufferCapBytes = defaultBufferCap
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.MaxChunkBytes <= 0 {
		cfg.MaxChunkBytes = defaultMaxChunk
	}
	return &Channel{
		cfg:     cfg,
		logg:    logg,
		metrics: m,
		nlu:     nlu,
		orders:  orderSvc,
	}, nil
}

// Serve runs one audio session over the socket until the client ends it,
// the idle window expires, or the connection drops. It blocks. The read
// loop only admits chunks; recognition runs on a separate goroutine so a
// slow collaborator backs pressure up into the session buffer instead of
// stalling reads.
func (c *Channel) Serve(ctx context.Context, conn socket, tenantID, connectionID uuid.UUID, actorUserID *uuid.UUID) error {
	session := newSession(tenantID, connectionID, c.cfg.BufferCapBytes)
	sock := &syncSocket{socket: conn}
	c.metrics.SessionStarted(tenantID.String())
	defer func() {
		session.Close()
		c.metrics.SessionClosed(tenantID.String())
		_ = sock.Close()
	}()

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"session_id":    session.ID.String(),
		"tenant_id":     tenantID.String(),
		"connection_id": connectionID.String(),
	})

	if err := sock.WriteJSON(ServerMessage{
		Type:        ServerTypeSessionStarted,
		SessionID:   session.ID,
		CreditLimit: c.cfg.CreditLimit,
	}); err != nil {
		return fmt.Errorf("send session_started: %w", err)
	}
	c.logg.Info(logCtx, "audio session started")

	jobs := make(chan ClientMessage, maxPendingChunks)
	processorDone := make(chan struct{})
	go func() {
		defer close(processorDone)
		for msg := range jobs {
			c.processChunk(logCtx, session, sock, actorUserID, msg)
		}
	}()
	stopProcessor := sync.OnceFunc(func() { close(jobs) })
	defer func() {
		stopProcessor()
		<-processorDone
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = sock.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
		_, raw, err := sock.ReadMessage()
		if err != nil {
			var netErr net.Error
			if stderrors.As(err, &netErr) && netErr.Timeout() {
				c.logg.Info(logCtx, "audio session idle, closing")
				return nil
			}
			c.logg.Info(logCtx, "audio socket closed")
			return nil
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError(sock, session, "malformed frame")
			continue
		}

		switch msg.Type {
		case ClientTypeAudioChunk:
			c.admitChunk(session, sock, msg, jobs)
		case ClientTypeEnd:
			// Stop admitting audio, let the queued chunks drain, then
			// run finalization on the emptied session.
			session.Drain()
			stopProcessor()
			<-processorDone
			c.finish(logCtx, session, sock, actorUserID)
			return nil
		default:
			c.sendError(sock, session, fmt.Sprintf("unknown frame type %q", msg.Type))
		}
	}
}

func (c *Channel) admitChunk(session *Session, sock socket, msg ClientMessage, jobs chan<- ClientMessage) {
	size := len(msg.Data)
	if size == 0 {
		c.sendError(sock, session, "empty audio chunk")
		return
	}
	if size > c.cfg.MaxChunkBytes {
		c.sendError(sock, session, fmt.Sprintf("chunk exceeds %d bytes", c.cfg.MaxChunkBytes))
		return
	}

	switch session.BeginChunk(msg.Seq, size) {
	case chunkDroppedSignal:
		c.metrics.IncOverrun("buffer_cap")
		_ = sock.WriteJSON(ServerMessage{
			Type:      ServerTypeOverrun,
			SessionID: session.ID,
			Seq:       msg.Seq,
		})
		return
	case chunkDroppedSilent:
		return
	case chunkRejectedClosed:
		c.sendError(sock, session, "session no longer accepts audio")
		return
	case chunkAccepted:
	}

	// Queue occupancy never exceeds the session's in-flight count, so an
	// admitted chunk always fits without blocking.
	jobs <- msg
}

func (c *Channel) processChunk(ctx context.Context, session *Session, sock socket, actorUserID *uuid.UUID, msg ClientMessage) {
	size := len(msg.Data)
	result, err := c.nlu.ProcessAudio(ctx, AudioInput{
		SessionID: session.ID,
		TenantID:  session.TenantID,
		Seq:       msg.Seq,
		Data:      msg.Data,
	})
	received := session.CompleteChunk(size)
	if err != nil {
		// Collaborator failures are session-level signals; the session
		// stays open so the client can retry speaking.
		c.logg.Error(ctx, "nlu processing failed", err)
		c.sendError(sock, session, "speech processing failed, please retry")
		return
	}

	c.metrics.AddAudioBytes(session.TenantID.String(), size)
	_ = sock.WriteJSON(ServerMessage{
		Type:          ServerTypeProgress,
		SessionID:     session.ID,
		Seq:           msg.Seq,
		BytesReceived: received,
	})

	c.handleResult(ctx, session, sock, actorUserID, result)
}

func (c *Channel) finish(ctx context.Context, session *Session, sock socket, actorUserID *uuid.UUID) {
	result, err := c.nlu.Finalize(ctx, session.ID)
	if err != nil {
		c.logg.Error(ctx, "nlu finalize failed", err)
		c.sendError(sock, session, "speech processing failed")
		return
	}
	c.handleResult(ctx, session, sock, actorUserID, result)
	c.logg.Info(ctx, "audio session ended")
}

func (c *Channel) handleResult(ctx context.Context, session *Session, sock socket, actorUserID *uuid.UUID, result *Result) {
	if result == nil {
		return
	}
	if result.Transcript != "" {
		_ = sock.WriteJSON(ServerMessage{
			Type:       ServerTypeTranscriptDelta,
			SessionID:  session.ID,
			Transcript: result.Transcript,
		})
	}
	if result.Clarification != "" {
		_ = sock.WriteJSON(ServerMessage{
			Type:      ServerTypeClarification,
			SessionID: session.ID,
			Question:  result.Clarification,
		})
	}
	if result.Delta == nil {
		return
	}
	if err := c.applyDelta(ctx, session, actorUserID, result.Delta); err != nil {
		c.logg.Error(ctx, "order delta failed", err)
		c.sendError(sock, session, "could not apply order change")
	}
}

// applyDelta turns an unambiguous NLU delta into draft or order state
// machine calls. Committed-order outcomes reach displays through the
// broadcast hub, not through the voice socket.
func (c *Channel) applyDelta(ctx context.Context, session *Session, actorUserID *uuid.UUID, delta *OrderDelta) error {
	switch delta.Action {
	case DeltaAddItem:
		if delta.Item == nil {
			return fmt.Errorf("add_item delta missing item")
		}
		session.AddItem(*delta.Item)
		session.SetTableRef(delta.TableRef)
		return nil

	case DeltaRemoveItem:
		if delta.Item == nil {
			return fmt.Errorf("remove_item delta missing item")
		}
		if !session.RemoveItem(delta.Item.CatalogRef) {
			return fmt.Errorf("item %s not in draft", delta.Item.CatalogRef)
		}
		return nil

	case DeltaConfirmOrder:
		items := session.DraftItems()
		if len(items) == 0 {
			return fmt.Errorf("no draft items to confirm")
		}
		order, err := c.orders.Create(ctx, orders.CreateOrderInput{
			TenantID:    session.TenantID,
			Channel:     enums.OrderChannelVoice,
			TableRef:    session.TableRef(),
			Items:       items,
			ActorUserID: actorUserID,
			ActorRole:   string(enums.RoleDevice),
		})
		if err != nil {
			return err
		}
		session.SetOrderID(order.ID)
		session.ClearDraft()
		if _, err := c.orders.Transition(ctx, orders.TransitionInput{
			TenantID:     session.TenantID,
			OrderID:      order.ID,
			TargetStatus: enums.OrderStatusPending,
			ActorChannel: enums.OrderChannelVoice,
			ActorUserID:  actorUserID,
			ActorRole:    string(enums.RoleDevice),
		}); err != nil {
			return err
		}
		return nil

	case DeltaCancelOrder:
		orderID := session.OrderID()
		if orderID == nil {
			session.ClearDraft()
			return nil
		}
		_, err := c.orders.Transition(ctx, orders.TransitionInput{
			TenantID:     session.TenantID,
			OrderID:      *orderID,
			TargetStatus: enums.OrderStatusCancelled,
			ActorChannel: enums.OrderChannelVoice,
			ActorUserID:  actorUserID,
			ActorRole:    string(enums.RoleDevice),
		})
		return err

	default:
		return fmt.Errorf("unknown delta action %q", delta.Action)
	}
}

func (c *Channel) sendError(sock socket, session *Session, message string) {
	_ = sock.WriteJSON(ServerMessage{
		Type:      ServerTypeError,
		SessionID: session.ID,
		Message:   message,
	})
}
