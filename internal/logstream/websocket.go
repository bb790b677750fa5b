package logstream

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
)

const writeTimeout = 5 * time.Second

// Handler serves the /ws/logs endpoint.
type Handler struct {
	hub            *Hub
	originPatterns []string
	skipOrigin     bool
	now            func() time.Time
}

// NewHandler returns a WebSocket handler streaming hub entries. Origins are
// matched against allowedOrigins; "*" (or an empty list) accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	h := &Handler{hub: hub, now: time.Now}
	if len(allowedOrigins) == 0 {
		h.skipOrigin = true
	}
	for _, o := range allowedOrigins {
		if o == "*" {
			h.skipOrigin = true
			break
		}
		h.originPatterns = append(h.originPatterns, originHost(o))
	}
	return h
}

// originHost reduces "https://example.com:8443" to "example.com:8443", the
// form accepted as an origin pattern.
func originHost(origin string) string {
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return u.Host
	}
	return origin
}

// ServeHTTP upgrades the connection, greets the client and forwards entries
// until either side goes away. A text "ping" is answered with a pong.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The stream outlives the server's read and write timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: h.skipOrigin,
	})
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	entries, subID := h.hub.Subscribe(ctx)
	logger := log.With().Str("component", "logstream").Str("sub_id", subID).Logger()
	logger.Info().Str("remote", r.RemoteAddr).Msg("log stream client connected")

	if err := h.write(ctx, conn, SystemEntry("Connected to log stream", h.now())); err != nil {
		logger.Debug().Err(err).Msg("greeting failed")
		return
	}

	go func() {
		defer cancel()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText && strings.TrimSpace(string(data)) == "ping" {
				if err := h.write(ctx, conn, Entry{Type: TypePong}); err != nil {
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("log stream client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case e, ok := <-entries:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.write(ctx, conn, e); err != nil {
				logger.Debug().Err(err).Msg("write failed")
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}
