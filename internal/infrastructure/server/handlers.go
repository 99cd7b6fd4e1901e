package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/collector"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/harvest"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/trace"
)

var (
	errUserNotFound = errors.New("user not found")
	errOutOfStock   = errors.New("out of stock")
)

// User is a record served by the sample application
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Order is a checkout request
type Order struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// Receipt is a completed checkout
type Receipt struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Charged  int    `json:"charged_cents"`
}

type handlers struct {
	session   *collector.Session
	harvester *harvest.Harvester
	metrics   *monitoring.Metrics

	users  map[string]User
	stock  map[string]int
	orders atomic.Int64

	lookupUser func(context.Context, string) (User, error)
	charge     func(context.Context, Order) (int, error)
	reserve    func(context.Context, Order) (struct{}, error)
	notify     func(context.Context) error
}

func newHandlers(session *collector.Session, harvester *harvest.Harvester, metrics *monitoring.Metrics) *handlers {
	h := &handlers{
		session:   session,
		harvester: harvester,
		metrics:   metrics,
		users: map[string]User{
			"1": {ID: "1", Name: "Ada"},
			"2": {ID: "2", Name: "Grace"},
		},
		stock: map[string]int{"book": 10, "pen": 100},
	}

	h.lookupUser = trace.Wrap(h.findUser, trace.Resolved[string](nil))
	h.charge = trace.Wrap(chargeCard, trace.Named[Order]("Custom/payments/charge"))
	h.reserve = trace.Wrap(h.reserveStock, trace.ByArg(func(o Order) string {
		return "Custom/inventory/" + o.SKU
	}))
	h.notify = trace.WrapFunc(h.countOrder, trace.Named[struct{}]("Custom/checkout/notify"))
	return h
}

// Root handles GET /
func (h *handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":       "monitor",
		"agent_version": collector.AgentVersion,
		"app_names":     h.session.AppNames(),
	})
}

// Health handles GET /health
func (h *handlers) Health(c *gin.Context) {
	runID, connected := h.session.RunID()
	snapshot := h.metrics.Snapshot()

	body := gin.H{
		"status":                "ok",
		"session":               h.session.State().String(),
		"pending_samples":       h.harvester.Pending(),
		"collector_calls":       snapshot.CollectorCalls,
		"collector_errors":      snapshot.CollectorErrors,
		"transactions_recorded": snapshot.TransactionsRecorded,
		"transactions_dropped":  snapshot.TransactionsDropped,
		"orders_completed":      h.orders.Load(),
	}
	if connected {
		body["run_id"] = runID
	}
	if !snapshot.LastHarvest.IsZero() {
		body["last_harvest"] = snapshot.LastHarvest
	}
	c.JSON(http.StatusOK, body)
}

// GetUser handles GET /users/:id
func (h *handlers) GetUser(c *gin.Context) {
	user, err := h.lookupUser(c.Request.Context(), c.Param("id"))
	if errors.Is(err, errUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Checkout handles POST /checkout
func (h *handlers) Checkout(c *gin.Context) {
	ctx := c.Request.Context()

	var order Order
	err := trace.Do(ctx, "Custom/checkout/decode", func(context.Context) error {
		return c.ShouldBindJSON(&order)
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order.SKU = strings.ToLower(order.SKU)

	if _, err := h.reserve(ctx, order); err != nil {
		c.Error(err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	charged, err := h.charge(ctx, order)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
		return
	}
	if err := h.notify(ctx); err != nil {
		c.Error(err)
	}

	c.JSON(http.StatusOK, Receipt{SKU: order.SKU, Quantity: order.Quantity, Charged: charged})
}

func (h *handlers) findUser(ctx context.Context, id string) (User, error) {
	var user User
	err := trace.Do(ctx, "Datastore/users/select", func(context.Context) error {
		u, ok := h.users[id]
		if !ok {
			return errUserNotFound
		}
		user = u
		return nil
	})
	return user, err
}

func (h *handlers) reserveStock(_ context.Context, o Order) (struct{}, error) {
	if h.stock[o.SKU] < o.Quantity {
		return struct{}{}, errOutOfStock
	}
	return struct{}{}, nil
}

func (h *handlers) countOrder(context.Context) error {
	h.orders.Add(1)
	return nil
}

func chargeCard(_ context.Context, o Order) (int, error) {
	return o.Quantity * 1299, nil
}
