package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/auth"
	"github.com/anicoll/counter-dashboard/internal/pkg/counter"
	"github.com/anicoll/counter-dashboard/internal/pkg/model"
	"github.com/anicoll/counter-dashboard/pkg/sockets"
)

const (
	frameView     = "view"
	frameNotice   = "notice"
	frameNavigate = "navigate"
	frameReset    = "reset"
)

type noticeFrame struct {
	model.Notice
	// DurationMS is zero for notices that stay until dismissed.
	DurationMS int64 `json:"duration_ms"`
}

type frame struct {
	Type     string        `json:"type"`
	View     *counter.View `json:"view,omitempty"`
	Notice   *noticeFrame  `json:"notice,omitempty"`
	Location string        `json:"location,omitempty"`
}

type clientFrame struct {
	Type string `json:"type"`
}

// socketSink forwards widget output to the browser.
type socketSink struct {
	conn   *sockets.Conn
	logger *zap.Logger
}

func (s *socketSink) Render(v counter.View) {
	s.send(frame{Type: frameView, View: &v})
}

func (s *socketSink) Notify(n model.Notice) {
	s.send(frame{Type: frameNotice, Notice: &noticeFrame{Notice: n, DurationMS: n.Duration.Milliseconds()}})
}

func (s *socketSink) send(f frame) {
	if err := s.conn.SendJSON(f); err != nil && !errors.Is(err, sockets.ErrClosed) {
		s.logger.Debug("failed to send frame", zap.String("type", f.Type), zap.Error(err))
	}
}

func (s *server) counterSocket(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r, s.authCfg.CookieName)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var widget *counter.Widget
	conn, err := sockets.Upgrade(w, r,
		sockets.WithPingInterval(s.httpCfg.PingInterval),
		sockets.OnMessage(func(msg []byte, _ *sockets.Conn) {
			var f clientFrame
			if err := json.Unmarshal(msg, &f); err != nil || f.Type != frameReset {
				s.logger.Debug("ignoring client frame", zap.ByteString("frame", msg))
				return
			}
			go func() {
				if err := widget.Reset(ctx); errors.Is(err, counter.ErrResetUnavailable) {
					s.logger.Debug("reset ignored while control is disabled")
				}
			}()
		}),
		sockets.OnError(func(err error) {
			s.logger.Debug("counter socket closed", zap.Error(err))
		}),
	)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	widget = counter.NewWidget(s.store, &socketSink{conn: conn, logger: s.logger})
	if err := widget.Mount(ctx); err != nil {
		s.logger.Error("failed to subscribe to product count", zap.Error(err))
	}
	defer widget.Unmount()

	go s.watchSession(ctx, conn, token)
	_ = conn.Serve(ctx)
}

// watchSession re-resolves the socket's session and sends the browser to the
// login page once it is gone.
func (s *server) watchSession(ctx context.Context, conn *sockets.Conn, token string) {
	ticker := time.NewTicker(s.httpCfg.SessionCheckInterval)
	defer ticker.Stop()

	gate := &auth.Gate{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case <-ticker.C:
			if gate.Observe(s.auth.Resolve(ctx, token)) != auth.ActionRedirect {
				continue
			}
			s.logger.Info("session ended, closing counter socket")
			_ = conn.SendJSON(frame{Type: frameNavigate, Location: loginPath})
			_ = conn.Close()
			return
		}
	}
}
