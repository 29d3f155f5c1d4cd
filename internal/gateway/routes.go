package gateway

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/txgw/internal/auth"
	"github.com/vyrodovalexey/txgw/internal/config"
)

// Route identifiers. They label metrics and key the response cache.
const (
	RouteRegister     = "register"
	RouteLogin        = "login"
	RouteTransactions = "transactions"
	RouteReport       = "report"
)

// Service names.
const (
	ServiceAuth         = "auth"
	ServiceTransactions = "transactions"
)

// Route describes one public endpoint. Routes are built once at startup
// and never modified.
type Route struct {
	ID           string
	Method       string
	Path         string
	Service      string
	UpstreamPath string
	Protected    bool
	Cacheable    bool
	CacheTTL     time.Duration
}

// BuildRoutes returns the route table for cfg. A zero CacheTTL defers to
// the cache default.
func BuildRoutes(cfg config.RoutesConfig) []Route {
	txPath := cfg.Transactions.UpstreamPath
	if txPath == "" {
		txPath = config.DefaultTransactionsPath
	}
	reportPath := cfg.Report.UpstreamPath
	if reportPath == "" {
		reportPath = config.DefaultReportPath
	}

	return []Route{
		{
			ID:           RouteRegister,
			Method:       http.MethodPost,
			Path:         "/register",
			Service:      ServiceAuth,
			UpstreamPath: auth.RegisterPath,
		},
		{
			ID:           RouteLogin,
			Method:       http.MethodPost,
			Path:         "/login",
			Service:      ServiceAuth,
			UpstreamPath: auth.LoginPath,
		},
		{
			ID:           RouteTransactions,
			Method:       http.MethodPost,
			Path:         "/transactions/",
			Service:      ServiceTransactions,
			UpstreamPath: txPath,
			Protected:    true,
			Cacheable:    cfg.Transactions.IsCacheable(),
			CacheTTL:     cfg.Transactions.CacheTTL.Duration(),
		},
		{
			ID:           RouteReport,
			Method:       http.MethodPost,
			Path:         "/transactions/report/",
			Service:      ServiceTransactions,
			UpstreamPath: reportPath,
			Protected:    true,
			Cacheable:    cfg.Report.IsCacheable(),
			CacheTTL:     cfg.Report.CacheTTL.Duration(),
		},
	}
}
