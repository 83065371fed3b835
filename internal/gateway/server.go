package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lagobot/lago"
	"github.com/lagobot/lago/frontend/telegram"
	"github.com/lagobot/lago/frontend/twilio"
)

// Server exposes the webhook endpoints:
//
//	POST /webhook/  Telegram updates, answered through the Telegram sink
//	POST /api       Twilio WhatsApp / Messenger messages, answered with TwiML
//	GET  /healthz
//	GET  /metrics
type Server struct {
	echo    *echo.Echo
	gw      *Gateway
	logger  *slog.Logger
	timeout time.Duration

	twilioToken     string
	twilioPublicURL string
}

type ServerOption func(*Server)

// WithTwilioSignature enables X-Twilio-Signature checks. publicURL is the
// externally visible base URL Twilio posts to (e.g. "https://bot.example.com").
func WithTwilioSignature(authToken, publicURL string) ServerOption {
	return func(s *Server) {
		s.twilioToken = authToken
		s.twilioPublicURL = strings.TrimRight(publicURL, "/")
	}
}

func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithHandleTimeout bounds the synchronous handling of one webhook.
func WithHandleTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

func NewServer(gw *Gateway, opts ...ServerOption) *Server {
	s := &Server{gw: gw, timeout: 2 * time.Minute}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = lago.NopLogger()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.handleError

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(gw.Metrics().Handler()))
	e.POST("/webhook/", s.telegramWebhook)
	e.POST("/api", s.twilioWebhook)
	s.echo = e
	return s
}

// Handler returns the HTTP handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("server: listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	s.logger.Warn("server: request failed", "status", code, "method", req.Method, "path", req.URL.Path, "remote", c.RealIP(), "error", err)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

func (s *Server) telegramWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}
	msg, ok, err := telegram.ParseUpdate(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !ok {
		// Telegram retries non-2xx answers; updates we ignore are acknowledged.
		return c.JSON(http.StatusOK, map[string]string{"message": ""})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.timeout)
	defer cancel()
	reply := s.gw.Handle(ctx, msg)
	if sink := s.gw.Sink(lago.ChannelTelegram); sink != nil && !reply.Empty() {
		if err := sink.Send(ctx, msg.ChatID, reply); err != nil {
			s.logger.Warn("server: telegram reply failed", "chat_id", msg.ChatID, "error", err)
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"message": reply.Text})
}

func (s *Server) twilioWebhook(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form")
	}
	if s.twilioToken != "" {
		url := s.twilioPublicURL + c.Request().URL.RequestURI()
		if !twilio.ValidSignature(s.twilioToken, url, form, c.Request().Header.Get("X-Twilio-Signature")) {
			return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
		}
	}

	var replies []lago.Reply
	if msg, ok := twilio.ParseInbound(form); ok {
		ctx, cancel := context.WithTimeout(c.Request().Context(), s.timeout)
		defer cancel()
		replies = append(replies, s.gw.Handle(ctx, msg))
	}
	doc, err := twilio.TwiML(replies...)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, twilio.ContentType, doc)
}
