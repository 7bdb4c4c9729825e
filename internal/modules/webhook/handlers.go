package webhook

import (
	"context"
	"io"
	"net/http"
	"time"

	"signal_trader/internal/models"
	health "signal_trader/internal/modules/health/service"
	"signal_trader/internal/runner"
	"signal_trader/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBody = 1 << 20

type Submitter interface {
	Submit(sig models.TradeSignal) (string, error)
}

type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

type StateReader interface {
	ListPositions(ctx context.Context) ([]models.Position, error)
	Stats(ctx context.Context, limit int) (models.StatsSnapshot, error)
}

type Handlers struct {
	pool   Submitter
	tokens TokenProvider
	store  StateReader
	state  *health.State
	policy models.Policy
}

func NewHandlers(pool Submitter, tokens TokenProvider, store StateReader, state *health.State, policy models.Policy) *Handlers {
	return &Handlers{pool: pool, tokens: tokens, store: store, state: state, policy: policy}
}

func NewRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/webhook", h.Webhook)
	r.GET("/healthcheck", h.Healthcheck)
	r.GET("/token", h.Token)
	r.GET("/dashboard", h.Dashboard)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// liveness: the process is up
	r.GET("/livez", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/readyz", func(c *gin.Context) {
		if !h.state.Ready() {
			c.String(http.StatusServiceUnavailable, "not ready")
			return
		}
		c.String(http.StatusOK, "ready")
	})
	return r
}

// Webhook acknowledges as soon as the signal is queued; execution happens on
// the worker pool and its outcome is not reported back to the sender.
func (h *Handlers) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}
	sig, err := models.ParseSignal(body, h.policy)
	if err != nil {
		logger.Warn("webhook: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}

	id, err := h.pool.Submit(sig)
	if err != nil {
		logger.Error("webhook: %s not queued: %v", sig.Symbol, err)
		status := http.StatusServiceUnavailable
		if !errors.Is(err, runner.ErrQueueFull) && !errors.Is(err, runner.ErrStopped) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logger.Info("webhook: %s %s queued as %s", sig.Action, sig.Symbol, id)
	c.JSON(http.StatusOK, gin.H{"status": "executing", "id": id})
}

func (h *Handlers) Healthcheck(c *gin.Context) {
	var lastTick int64
	if t := h.state.LastTick(); !t.IsZero() {
		lastTick = t.Unix()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"ready":        h.state.Ready(),
		"storeOK":      h.state.StoreOK(),
		"uptimeSec":    int64(h.state.Uptime().Seconds()),
		"lastTickUnix": lastTick,
	})
}

func (h *Handlers) Token(c *gin.Context) {
	tok, err := h.tokens.GetToken(c.Request.Context())
	if err != nil {
		logger.Warn("token endpoint: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

type dashboardPosition struct {
	Symbol     string  `json:"symbol"`
	ContractID string  `json:"contract_id"`
	Side       string  `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	TP1        float64 `json:"tp1"`
	TP2        float64 `json:"tp2"`
	TP3        float64 `json:"tp3"`
	AccountID  int64   `json:"account_id"`
	TP1Closed  bool    `json:"tp1_closed"`
	TP2Closed  bool    `json:"tp2_closed"`
}

type dashboard struct {
	Positions     []dashboardPosition `json:"positions"`
	Wins          int64               `json:"wins"`
	Losses        int64               `json:"losses"`
	WinRate       float64             `json:"win_rate"`
	CumulativePnL float64             `json:"cumulative_pnl"`
	History       []string            `json:"history"`
}

// Dashboard is the open trades and the stats, as JSON.
func (h *Handlers) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	positions, err := h.store.ListPositions(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	st, err := h.store.Stats(ctx, 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := dashboard{
		Positions:     []dashboardPosition{},
		Wins:          st.Wins,
		Losses:        st.Losses,
		WinRate:       st.WinRate(),
		CumulativePnL: st.CumulativePnL,
		History:       st.History,
	}
	if out.History == nil {
		out.History = []string{}
	}
	for _, p := range positions {
		if p.Terminal() {
			continue
		}
		symbol := p.Symbol
		if symbol == "" {
			symbol = p.ContractID
		}
		out.Positions = append(out.Positions, dashboardPosition{
			Symbol:     symbol,
			ContractID: p.ContractID,
			Side:       p.Side.String(),
			EntryPrice: p.EntryPrice,
			TP1:        p.TP1,
			TP2:        p.TP2,
			TP3:        p.TP3,
			AccountID:  p.AccountID,
			TP1Closed:  p.TP1Closed,
			TP2Closed:  p.TP2Closed,
		})
	}
	c.JSON(http.StatusOK, out)
}
