// Package metrics exposes the trading loop's prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IterationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "forexbot_iterations_total", Help: "Loop iterations by outcome"},
		[]string{"outcome"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "forexbot_orders_total", Help: "Orders submitted by side and result code"},
		[]string{"side", "result"},
	)
	DailyRealizedLoss = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "forexbot_daily_realized_loss", Help: "Realized loss of tagged deals since local midnight"},
	)
	AccountBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "forexbot_account_balance", Help: "Last observed account balance"},
	)
)

func init() {
	prometheus.MustRegister(IterationsTotal, OrdersTotal, DailyRealizedLoss, AccountBalance)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
