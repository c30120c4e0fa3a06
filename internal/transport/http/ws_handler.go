package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 10 * time.Second
)

var errSlowConsumer = errors.New("slow consumer")

// Authenticator resolves a handshake credential to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (auth.Identity, error)
}

// WSHandler upgrades HTTP connections and bridges them to a relay namespace.
type WSHandler struct {
	relay           *core.Relay
	authn           Authenticator
	maxMessageBytes int64
	eventBuffer     int
	log             *zerolog.Logger
}

// NewWSHandler builds a WebSocket handler for one namespace.
func NewWSHandler(relay *core.Relay, authn Authenticator, maxMessageBytes int64, eventBuffer int, logger *zerolog.Logger) *WSHandler {
	scoped := logger.With().Str("namespace", string(relay.Kind())).Logger()
	return &WSHandler{
		relay:           relay,
		authn:           authn,
		maxMessageBytes: maxMessageBytes,
		eventBuffer:     eventBuffer,
		log:             &scoped,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()
	credential := credentialFromRequest(r)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	client := core.NewClient(uuid.NewString(), h.eventBuffer)
	if !h.admit(ctx, conn, client, credential) {
		return
	}
	// Registry teardown completes before ServeHTTP returns.
	defer h.relay.Disconnect(client)

	ctx, cancel := context.WithCancel(ctx)
	served := make(chan struct{})
	go func() {
		h.relay.Serve(ctx, client)
		close(served)
	}()
	defer func() {
		cancel()
		<-served
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, errSlowConsumer) {
		status = websocket.StatusTryAgainLater
		reason = errSlowConsumer.Error()
		h.log.Warn().Str("client_id", client.ID).Int64("user_id", client.UserID()).Msg("closing slow consumer")
	} else if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	h.log.Debug().
		Str("client_id", client.ID).
		Str("username", client.Username()).
		Dur("connected_for", time.Since(client.AuthenticatedAt())).
		Int("status", int(status)).
		Msg("connection closed")
	conn.Close(status, reason)
}

// admit authenticates the connection once. On failure the client receives a single
// error event and the socket is closed.
func (h *WSHandler) admit(ctx context.Context, conn *websocket.Conn, client *core.Client, credential string) bool {
	authCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	identity, err := h.authn.Authenticate(authCtx, credential)
	if err == nil {
		client.Authenticate(identity.UserID, identity.Username, time.Now().UTC())
		h.log.Debug().Str("client_id", client.ID).Int64("user_id", identity.UserID).Msg("connection authenticated")
		return true
	}

	status := websocket.StatusPolicyViolation
	coreErr := core.UnauthorizedError("unauthorized")
	if !errors.Is(err, auth.ErrUnauthorized) {
		h.log.Error().Err(err).Str("client_id", client.ID).Msg("authenticate connection")
		status = websocket.StatusInternalError
		coreErr = &core.CoreError{Code: core.ErrCodeInternal, Message: "internal error"}
	} else {
		h.log.Debug().Err(err).Str("client_id", client.ID).Msg("handshake rejected")
	}

	client.Close()
	if writeErr := wsjson.Write(authCtx, conn, errorOutbound("", coreErr)); writeErr != nil {
		h.log.Debug().Err(writeErr).Str("client_id", client.ID).Msg("write handshake error")
	}
	conn.Close(status, coreErr.Message)
	return false
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		var cmd *core.Command
		var coreErr *core.CoreError
		if err := json.Unmarshal(data, &inbound); err != nil {
			coreErr = core.ValidationError("malformed frame")
		} else {
			cmd, coreErr = inboundToCommand(inbound)
		}
		if coreErr != nil {
			ev := &core.Event{Kind: core.EventError, Reply: true, RequestID: inbound.ID, Error: coreErr}
			if !client.Deliver(ev) {
				client.Close()
				return errSlowConsumer
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return errSlowConsumer
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := h.write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			return errSlowConsumer
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, out proto.Outbound) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, out)
}
