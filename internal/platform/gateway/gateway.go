// Package gateway connects to the external platform client process over a
// WebSocket. Inbound frames carry occupancy and interaction events; outbound
// frames carry platform.Client calls as request/response pairs correlated by
// id. The platform's own wire protocol never crosses this boundary; the
// companion process speaks it.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/platform"
)

const (
	opVoiceUpdate       = "voice_update"
	opInteraction       = "interaction"
	opInteractionResult = "interaction_result"
	opResponse          = "response"

	errNotFound   = "not_found"
	errPermission = "permission"
)

// ErrNotConnected is returned for platform calls made while the gateway has
// no live connection.
var ErrNotConnected = errors.New("gateway: not connected")

// requestTimeout caps how long one platform call may stay in flight.
const requestTimeout = 15 * time.Second

type frame struct {
	Op    string          `json:"op"`
	ID    string          `json:"id,omitempty"`
	OK    bool            `json:"ok,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventSink receives the inbound event stream. Implemented by the dispatcher.
type EventSink interface {
	SubmitVoice(ev platform.VoiceUpdate)
	SubmitInteraction(in platform.Interaction, reply func(platform.InteractionResult))
}

// Gateway is a platform.Client whose calls travel over the socket, plus the
// reader that feeds inbound events to a sink.
type Gateway struct {
	url   string
	token string
	log   *zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan frame
}

// New builds a gateway; no connection is made until Run.
func New(url, token string, logger *zerolog.Logger) *Gateway {
	return &Gateway{
		url:     url,
		token:   token,
		log:     logger,
		pending: make(map[string]chan frame),
	}
}

// Run dials the platform client and reads frames until the connection drops
// or ctx is cancelled. Events go to sink; responses go to their waiting
// callers. Returns the terminal error; the caller decides about reconnecting.
func (g *Gateway) Run(ctx context.Context, sink EventSink) error {
	header := http.Header{}
	if g.token != "" {
		header.Set("Authorization", "Bearer "+g.token)
	}

	conn, _, err := websocket.Dial(ctx, g.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
	g.log.Info().Str("url", g.url).Msg("gateway connected")

	defer func() {
		g.mu.Lock()
		g.conn = nil
		for id, ch := range g.pending {
			close(ch)
			delete(g.pending, id)
		}
		g.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "closing")
	}()

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return fmt.Errorf("read gateway frame: %w", err)
		}

		switch f.Op {
		case opVoiceUpdate:
			var ev platform.VoiceUpdate
			if err := json.Unmarshal(f.Data, &ev); err != nil {
				g.log.Warn().Err(err).Msg("bad voice_update frame")
				continue
			}
			sink.SubmitVoice(ev)

		case opInteraction:
			var in platform.Interaction
			if err := json.Unmarshal(f.Data, &in); err != nil {
				g.log.Warn().Err(err).Msg("bad interaction frame")
				continue
			}
			interactionID := in.ID
			sink.SubmitInteraction(in, func(result platform.InteractionResult) {
				if err := g.sendResult(interactionID, result); err != nil {
					g.log.Warn().Err(err).Str("interaction", interactionID).Msg("failed to send interaction result")
				}
			})

		case opResponse:
			g.mu.Lock()
			ch, ok := g.pending[f.ID]
			if ok {
				delete(g.pending, f.ID)
			}
			g.mu.Unlock()
			if ok {
				ch <- f
			}

		default:
			g.log.Debug().Str("op", f.Op).Msg("ignoring unknown gateway op")
		}
	}
}

func (g *Gateway) write(ctx context.Context, f frame) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return wsjson.Write(ctx, conn, f)
}

func (g *Gateway) sendResult(interactionID string, result platform.InteractionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return g.write(ctx, frame{Op: opInteractionResult, ID: interactionID, OK: result.OK, Data: data})
}

// call performs one request/response round trip. out may be nil for calls
// with no payload in the answer.
func (g *Gateway) call(ctx context.Context, op string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}

	id := uuid.NewString()
	ch := make(chan frame, 1)
	g.mu.Lock()
	if g.conn == nil {
		g.mu.Unlock()
		return ErrNotConnected
	}
	g.pending[id] = ch
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := g.write(ctx, frame{Op: op, ID: id, Data: data}); err != nil {
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}

	select {
	case <-ctx.Done():
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case resp, open := <-ch:
		if !open {
			return fmt.Errorf("%s: %w", op, ErrNotConnected)
		}
		if !resp.OK {
			return fmt.Errorf("%s: %w", op, mapError(resp.Error))
		}
		if out != nil && len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("%s: decode response: %w", op, err)
			}
		}
		return nil
	}
}

func mapError(code string) error {
	switch code {
	case errNotFound:
		return platform.ErrNotFound
	case errPermission:
		return platform.ErrPermission
	default:
		return fmt.Errorf("platform error: %s", code)
	}
}
