package livehttp

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"giftbuyer/internal/buyer"
	"giftbuyer/internal/gift"
	"giftbuyer/internal/logger"
	"giftbuyer/internal/store/model"
	"giftbuyer/internal/store/ticklog"

	"github.com/gin-gonic/gin"
)

const (
	maxLogLineSize = 1 << 20
	maxListLimit   = 500
)

// StatusProvider is the live view of the allocation loop.
type StatusProvider interface {
	OpenInvoices() []gift.Invoice
	Purchased(invoiceID string) int
	KnownGiftIDs() []string
	LastReport() (buyer.Report, bool)
	Capacity() int
}

type TransactionReader interface {
	ListRecent(ctx context.Context, limit int) ([]model.GiftTransactionModel, error)
	ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]model.GiftTransactionModel, error)
	CountByInvoice(ctx context.Context) (map[string]int, error)
}

type TickReader interface {
	List(ctx context.Context, q ticklog.Query) ([]ticklog.Entry, error)
}

// Router serves the /api/live endpoints.
type Router struct {
	status       StatusProvider
	transactions TransactionReader
	ticks        TickReader
	logPaths     map[string]string
	logNames     []string
}

func NewRouter(status StatusProvider, txs TransactionReader, ticks TickReader, logPaths map[string]string) *Router {
	names := make([]string, 0, len(logPaths))
	for name, path := range logPaths {
		if strings.TrimSpace(path) == "" || strings.TrimSpace(name) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return &Router{status: status, transactions: txs, ticks: ticks, logPaths: logPaths, logNames: names}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/invoices", r.handleInvoices)
	group.GET("/gifts/known", r.handleKnownGifts)
	group.GET("/reports/last", r.handleLastReport)
	group.GET("/reports", r.handleReports)
	group.GET("/transactions", r.handleTransactions)
	group.GET("/logs", r.handleLogs)
}

// invoiceView pairs an open invoice with its in-memory progress and, when the
// transaction store is enabled, the purchases recorded for it across runs.
type invoiceView struct {
	gift.Invoice
	Purchased int  `json:"purchased"`
	Stored    *int `json:"stored,omitempty"`
}

func (r *Router) handleInvoices(c *gin.Context) {
	var stored map[string]int
	if r.transactions != nil {
		counts, err := r.transactions.CountByInvoice(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		stored = counts
	}
	open := r.status.OpenInvoices()
	views := make([]invoiceView, 0, len(open))
	for _, inv := range open {
		view := invoiceView{Invoice: inv, Purchased: r.status.Purchased(inv.ID)}
		if stored != nil {
			n := stored[inv.ID]
			view.Stored = &n
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{
		"invoices": views,
		"capacity": r.status.Capacity(),
	})
}

func (r *Router) handleKnownGifts(c *gin.Context) {
	ids := r.status.KnownGiftIDs()
	c.JSON(http.StatusOK, gin.H{"ids": ids, "count": len(ids)})
}

func (r *Router) handleLastReport(c *gin.Context) {
	report, ok := r.status.LastReport()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no tick has finished yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (r *Router) handleReports(c *gin.Context) {
	if r.ticks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tick log disabled"})
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	entries, err := r.ticks.List(c.Request.Context(), ticklog.Query{
		Limit:      parseLimit(c),
		Offset:     offset,
		ErrorsOnly: parseBool(c.Query("errors")),
	})
	if err != nil {
		logger.Errorf("[api] list reports failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []ticklog.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": entries})
}

func (r *Router) handleTransactions(c *gin.Context) {
	if r.transactions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transaction store disabled"})
		return
	}
	ctx := c.Request.Context()
	limit := parseLimit(c)
	var (
		txs []model.GiftTransactionModel
		err error
	)
	if invoiceID := strings.TrimSpace(c.Query("invoice_id")); invoiceID != "" {
		txs, err = r.transactions.ListByInvoice(ctx, invoiceID, limit)
	} else {
		txs, err = r.transactions.ListRecent(ctx, limit)
	}
	if err != nil {
		logger.Errorf("[api] list transactions failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if txs == nil {
		txs = []model.GiftTransactionModel{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (r *Router) handleLogs(c *gin.Context) {
	if len(r.logNames) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no log files configured"})
		return
	}
	name := strings.TrimSpace(c.Query("name"))
	path := strings.TrimSpace(r.logPaths[name])
	if path == "" {
		name = r.logNames[0]
		path = r.logPaths[name]
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if limit <= 0 || limit > 5000 {
		limit = 200
	}
	lines, err := readLastLines(path, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "name": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":      name,
		"lines":     lines,
		"available": r.logNames,
	})
}

func readLastLines(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLogLineSize)
	lines := make([]string, 0, limit)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		return 100
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func parseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
