package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"jobportal/internal/auth"
	"jobportal/internal/metrics"
	"jobportal/internal/tasks"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongWait     = wsPingInterval + 10*time.Second
	wsWriteTimeout = 5 * time.Second
	wsMaxInbound   = 4096
)

// WsHandler 把 Redis 用户频道上的通知推给已登录的浏览器。
type WsHandler struct {
	db          *gorm.DB
	feed        NotificationFeed
	authService *auth.AuthService
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

func NewWsHandler(db *gorm.DB, feed NotificationFeed, authService *auth.AuthService, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	return &WsHandler{
		db:          db,
		feed:        feed,
		authService: authService,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return originAllowed(allowedOrigins, r) },
		},
	}
}

// originAllowed 未配置白名单时只允许同源；没有 Origin 的非浏览器客户端放行。
func originAllowed(allowed []string, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(allowed) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, o := range allowed {
		if strings.EqualFold(origin, o) {
			return true
		}
	}
	return false
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// wsSession 持有一条连接。所有写操作都在 HandleConnection 的 goroutine 中完成，
// 读 goroutine 只负责发现断开并通过 closeWith 通知。
type wsSession struct {
	conn   *websocket.Conn
	log    *slog.Logger
	cancel context.CancelFunc

	once sync.Once
	err  error
}

func (s *wsSession) closeWith(err error) {
	s.once.Do(func() {
		s.err = err
		s.cancel()
	})
}

func (s *wsSession) reject(text string, err error) error {
	deadline := time.Now().Add(wsWriteTimeout)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, text), deadline)
	return err
}

func (s *wsSession) writeText(data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.writeText(data)
}

func (s *wsSession) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// HandleConnection 完成握手鉴权，然后转发通知直到任一方断开。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxInbound)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	s := &wsSession{
		conn:   conn,
		cancel: cancel,
		log:    h.logger.With(slog.String("client_ip", c.ClientIP())),
	}

	userID, err := h.authenticate(s)
	if err != nil {
		s.log.Warn("websocket authentication failed", slog.Any("error", err))
		return
	}
	s.log = s.log.With(slog.Uint64("user_id", uint64(userID)))
	s.log.Info("websocket authenticated")

	metrics.WSConnected()
	defer metrics.WSDisconnected()

	go s.drainReads()

	if err := h.forward(ctx, s, userID); err != nil {
		s.closeWith(err)
	}
	s.log.Info("websocket connection closed", slog.Any("reason", s.err))
}

// authenticate 要求首条消息为 {"type":"auth","token":<access token>}。
func (h *WsHandler) authenticate(s *wsSession) (uint, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	_, message, err := s.conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("read auth message: %w", err)
	}

	var msg wsAuthMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return 0, s.reject("invalid auth payload", fmt.Errorf("decode auth payload: %w", err))
	}
	if msg.Type != "auth" || msg.Token == "" {
		return 0, s.reject("auth required", errors.New("first message is not auth"))
	}

	claims, err := h.authService.ValidateAccessToken(msg.Token)
	if err != nil {
		return 0, s.reject("unauthorized", err)
	}
	if claims.MustChangePassword {
		return 0, s.reject("password change required", errors.New("must change password"))
	}
	return claims.UserID, nil
}

// drainReads 丢弃客户端消息，只用来维持读超时并发现断开。
func (s *wsSession) drainReads() {
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.closeWith(fmt.Errorf("read: %w", err))
			return
		}
	}
}

// forward 先订阅用户频道再发快照，两者之间到达的通知不会丢，客户端按 id 去重。
func (h *WsHandler) forward(ctx context.Context, s *wsSession, userID uint) error {
	channel := tasks.UserChannel(userID)
	sub, err := h.feed.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", channel, err)
	}
	defer sub.Close()

	snapshot, err := notificationSnapshot(ctx, h.db, userID)
	if err != nil {
		return fmt.Errorf("load notification snapshot: %w", err)
	}
	if err := s.writeJSON(snapshot); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	messages := sub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			if err := s.writeText([]byte(msg.Payload)); err != nil {
				return fmt.Errorf("write message: %w", err)
			}
			s.log.Debug("notification forwarded")
		case <-ticker.C:
			if err := s.ping(); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}
