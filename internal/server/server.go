package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	WebhookPath  = "/telegram/webhook"
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// Server accepts Telegram webhook deliveries and exposes a health probe.
type Server struct {
	http    *http.Server
	secret  []byte
	updates chan tgbotapi.Update
	done    chan struct{}
}

// New builds a server that only accepts deliveries carrying secret in SecretHeader.
func New(addr string, buffer int, secret string) *Server {
	s := &Server{
		secret:  []byte(secret),
		updates: make(chan tgbotapi.Update, buffer),
		done:    make(chan struct{}),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Updates delivers decoded webhook updates. It is never closed; consumers stop on their own context.
func (s *Server) Updates() <-chan tgbotapi.Update {
	return s.updates
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST(WebhookPath, s.handleWebhook)
	return r
}

func (s *Server) handleWebhook(c *gin.Context) {
	got := []byte(c.GetHeader(SecretHeader))
	if len(s.secret) == 0 || subtle.ConstantTimeCompare(got, s.secret) != 1 {
		log.Printf("[warn] webhook: rejected delivery from %s", c.ClientIP())
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		log.Printf("[warn] webhook: bad payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}
	select {
	case s.updates <- update:
		c.Status(http.StatusOK)
	case <-s.done:
		c.Status(http.StatusServiceUnavailable)
	case <-c.Request.Context().Done():
		c.Status(http.StatusServiceUnavailable)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[info] webhook server listening on %s", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		close(s.done)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	close(s.done)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
