package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/render"
	"github.com/matsen/vulngraph/internal/scene"
	"github.com/matsen/vulngraph/internal/viewport"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBufferSize = 32
)

// session is one browser connection and the scene it views.
type session struct {
	id     string
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	loop        *scene.Loop
	sizes       *viewport.ChanSource
	windowSizes *viewport.ChanSource
	viewport    *viewport.Manager
	limiter  *rate.Limiter
	list     *render.DisplayList

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// Owned by the loop goroutine.
	dragging     bool
	flushPending bool
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr))
		return
	}

	sess := s.newSession(conn, r.URL.Query().Get(ObserverParam))
	s.logger.Info("session opened",
		zap.String("session", sess.id),
		zap.String("remoteAddr", r.RemoteAddr))
	sess.run()
	s.logger.Info("session closed", zap.String("session", sess.id))
}

// newSession creates a session. observer names the size source the page
// uses; SizeSourceWindow marks element observation as unsupported so the
// viewport manager falls back to window-level sizes.
func (s *Server) newSession(conn *websocket.Conn, observer string) *session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	limit := rate.Inf
	if s.frameRate > 0 {
		limit = rate.Limit(s.frameRate)
	}

	sess := &session{
		id:          id,
		server:      s,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		logger:      s.logger.With(zap.String("session", id)),
		sizes:       viewport.NewChanSource(),
		windowSizes: viewport.NewChanSource(),
		viewport:    viewport.NewManager(s.initialSize, s.logger),
		limiter:     rate.NewLimiter(limit, 1),
		list:        render.NewDisplayList(s.initialSize.Width, s.initialSize.Height, s.fonts),
		ctx:         ctx,
		cancel:      cancel,
	}
	if observer == SizeSourceWindow {
		sess.sizes.SetUnsupported(true)
	}

	sc := scene.New(s.initialSize,
		scene.WithLogger(sess.logger),
		scene.WithActivateHandler(func(n graph.GraphNode) {
			sess.enqueue(Outbound{Type: MsgActivated, Node: &n})
		}),
		scene.WithClearHandler(func() {
			sess.enqueue(Outbound{Type: MsgCleared})
		}),
	)
	report := sc.SetData(s.Data())
	sess.loop = scene.NewLoop(sc, sess.sink,
		scene.WithTickInterval(s.tickInterval),
		scene.WithLoopLogger(sess.logger))
	sess.enqueue(Outbound{Type: MsgLoaded, Report: &report})
	return sess
}

// run serves the session until the connection or server closes it.
func (sess *session) run() {
	sess.server.register(sess)
	defer sess.server.unregister(sess)
	defer sess.close()

	sess.viewport.Subscribe(func(size viewport.Size) {
		sess.do(func(sc *scene.Scene) { sc.Resize(size) })
	})
	if err := sess.viewport.Observe(sess.sizes, sess.windowSizes); err != nil {
		sess.logger.Warn("viewport observation failed", zap.Error(err))
	}

	go sess.loop.Run(sess.ctx)
	go sess.writePump()
	sess.readPump()
}

func (sess *session) close() {
	sess.closeOnce.Do(func() {
		sess.cancel()
		sess.viewport.Close()
		sess.conn.Close()
	})
}

// do runs fn on the loop goroutine.
func (sess *session) do(fn func(*scene.Scene)) {
	if err := sess.loop.Send(sess.ctx, fn); err != nil {
		sess.logger.Debug("event dropped", zap.Error(err))
	}
}

// load replaces the session's result set.
func (sess *session) load(ctx context.Context, data graph.GraphData) {
	err := sess.loop.Send(ctx, func(sc *scene.Scene) {
		sess.dragging = false
		report := sc.SetData(data)
		sess.enqueue(Outbound{Type: MsgLoaded, Report: &report})
	})
	if err != nil {
		sess.logger.Debug("load dropped", zap.Error(err))
	}
}

// enqueue queues a control message. It waits for buffer space since these
// messages carry state the browser must not miss.
func (sess *session) enqueue(msg Outbound) {
	b, err := json.Marshal(msg)
	if err != nil {
		sess.logger.Error("encoding message", zap.Error(err), zap.String("type", msg.Type))
		return
	}
	select {
	case sess.send <- b:
	case <-sess.ctx.Done():
	}
}

func (sess *session) sendError(err error) {
	sess.enqueue(Outbound{Type: MsgError, Error: err.Error()})
}

// sink encodes the scene as a display list frame. Frames replace each
// other, so when one is skipped a flush is scheduled to guarantee the
// final state still reaches the browser.
func (sess *session) sink(sc *scene.Scene) {
	metrics := sess.server.metrics
	if !sess.limiter.Allow() {
		metrics.FramesDropped.Inc()
		sess.scheduleFlush()
		return
	}

	size := sc.Size()
	sess.list.Reset(size.Width, size.Height)
	sc.Draw(sess.list)
	b, err := json.Marshal(Outbound{Type: MsgFrame, Frame: sess.list})
	if err != nil {
		sess.logger.Error("encoding frame", zap.Error(err))
		return
	}

	select {
	case sess.send <- b:
		metrics.Frames.Inc()
	default:
		metrics.FramesDropped.Inc()
		sess.scheduleFlush()
	}
}

func (sess *session) scheduleFlush() {
	if sess.flushPending {
		return
	}
	sess.flushPending = true

	delay := 50 * time.Millisecond
	if lim := sess.limiter.Limit(); lim != rate.Inf && lim > 0 {
		delay = time.Duration(float64(time.Second) / float64(lim))
	}
	time.AfterFunc(delay, func() {
		sess.do(func(*scene.Scene) { sess.flushPending = false })
	})
}

func (sess *session) readPump() {
	sess.conn.SetReadLimit(maxMessageSize)
	sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Inbound
		if err := sess.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		sess.handle(msg)
	}
}

func (sess *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sess.close()
	}()

	for {
		select {
		case <-sess.ctx.Done():
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			sess.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-sess.send:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				sess.logger.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

// handle dispatches one inbound message.
func (sess *session) handle(msg Inbound) {
	label := msg.Type
	switch msg.Type {
	case MsgResize:
		size := viewport.Size{Width: msg.Width, Height: msg.Height}
		if msg.Source == SizeSourceWindow {
			sess.windowSizes.Push(size)
		} else {
			sess.sizes.Push(size)
		}

	case MsgClick:
		if msg.ID != "" {
			id := msg.ID
			sess.do(func(sc *scene.Scene) { sc.ClickNode(id) })
		} else {
			x, y := msg.X, msg.Y
			sess.do(func(sc *scene.Scene) { sc.Click(x, y) })
		}

	case MsgDrag:
		x, y := msg.X, msg.Y
		sess.do(func(sc *scene.Scene) {
			if !sess.dragging {
				sess.dragging = sc.DragStart(x, y)
				return
			}
			sc.Drag(x, y)
		})

	case MsgRelease:
		sess.do(func(sc *scene.Scene) {
			sc.DragEnd()
			sess.dragging = false
		})

	case MsgDismiss:
		sess.do(func(sc *scene.Scene) { sc.Dismiss() })

	case MsgQuery:
		cypher, params := msg.Cypher, msg.Params
		go func() {
			data, err := sess.server.runQuery(sess.ctx, cypher, params)
			if err != nil {
				sess.sendError(fmt.Errorf("query: %w", err))
				return
			}
			sess.load(sess.ctx, data)
		}()

	case MsgSearch:
		text, k := msg.Text, msg.K
		go func() {
			data, err := sess.server.runSearch(sess.ctx, text, k)
			if err != nil {
				sess.sendError(fmt.Errorf("search: %w", err))
				return
			}
			sess.load(sess.ctx, data)
		}()

	default:
		label = "unknown"
		sess.sendError(fmt.Errorf("unknown message type %q", msg.Type))
	}
	sess.server.metrics.Messages.WithLabelValues(label).Inc()
}
