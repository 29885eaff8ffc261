package livehttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"hedgebot/internal/agent"
	"hedgebot/internal/logger"
	"hedgebot/internal/store"
)

const maxListLimit = 500

// AccountRunner is the slice of agent.Runner the HTTP surface needs.
type AccountRunner interface {
	Name() string
	Snapshot() agent.Snapshot
	RunOnce(ctx context.Context) (agent.Report, error)
	CloseAll(ctx context.Context) (agent.Report, error)
}

type Router struct {
	runners      map[string]AccountRunner
	order        []string
	journal      store.Journal
	allowControl bool
}

func NewRouter(runners []AccountRunner, journal store.Journal, allowControl bool) *Router {
	r := &Router{
		runners:      make(map[string]AccountRunner, len(runners)),
		journal:      journal,
		allowControl: allowControl,
	}
	for _, run := range runners {
		key := strings.ToLower(run.Name())
		if _, dup := r.runners[key]; dup {
			continue
		}
		r.runners[key] = run
		r.order = append(r.order, run.Name())
	}
	return r
}

func (r *Router) Register(router gin.IRouter) {
	api := router.Group("/api")
	api.GET("/status", r.handleStatusAll)
	api.GET("/status/:account", r.handleStatus)
	api.GET("/cycles", r.handleCycles)
	api.GET("/executions", r.handleExecutions)
	if r.allowControl {
		api.POST("/accounts/:account/rebalance", r.handleRebalance)
		api.POST("/accounts/:account/close-all", r.handleCloseAll)
	}
	router.GET("/charts/hedge", r.handleHedgeChart)
}

func (r *Router) lookup(name string) (AccountRunner, bool) {
	run, ok := r.runners[strings.ToLower(strings.TrimSpace(name))]
	return run, ok
}

func (r *Router) handleStatusAll(c *gin.Context) {
	out := make([]accountView, 0, len(r.order))
	for _, name := range r.order {
		run, _ := r.lookup(name)
		out = append(out, newAccountView(run.Snapshot()))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (r *Router) handleStatus(c *gin.Context) {
	run, ok := r.lookup(c.Param("account"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}
	c.JSON(http.StatusOK, newAccountView(run.Snapshot()))
}

func (r *Router) handleCycles(c *gin.Context) {
	account, ok := r.accountFilter(c)
	if !ok {
		return
	}
	recs, err := r.journal.RecentCycles(c.Request.Context(), account, parseLimit(c))
	if err != nil {
		logger.Errorf("list cycles failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]cycleView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, newCycleView(rec))
	}
	c.JSON(http.StatusOK, gin.H{"cycles": out})
}

func (r *Router) handleExecutions(c *gin.Context) {
	account, ok := r.accountFilter(c)
	if !ok {
		return
	}
	recs, err := r.journal.RecentExecutions(c.Request.Context(), account, parseLimit(c))
	if err != nil {
		logger.Errorf("list executions failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []store.ExecutionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"executions": recs})
}

func (r *Router) handleRebalance(c *gin.Context) {
	run, ok := r.lookup(c.Param("account"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}
	logger.Warnf("manual rebalance requested for %s from %s", run.Name(), c.ClientIP())
	rep, err := run.RunOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"cycle_id": rep.ID, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycle_id": rep.ID, "results": newResultViews(rep.Results)})
}

func (r *Router) handleCloseAll(c *gin.Context) {
	run, ok := r.lookup(c.Param("account"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}
	if c.Query("confirm") != run.Name() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirm must equal the account name"})
		return
	}
	logger.Warnf("manual close-all requested for %s from %s", run.Name(), c.ClientIP())
	// The close must finish even if the client goes away.
	rep, err := run.CloseAll(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"cycle_id": rep.ID, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycle_id": rep.ID, "results": newResultViews(rep.Results)})
}

// accountFilter reads ?account=, rejecting names that are not configured.
func (r *Router) accountFilter(c *gin.Context) (string, bool) {
	name := strings.TrimSpace(c.Query("account"))
	if name == "" {
		return "", true
	}
	run, ok := r.lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return "", false
	}
	return run.Name(), true
}

func parseLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || n <= 0 {
		return 50
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
