package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics groups the collectors tracking ledger activity.
type LendingMetrics struct {
	operations      *prometheus.CounterVec
	liquidations    prometheus.Counter
	scoreRecomputes prometheus.Counter
	poolCollateral  *prometheus.GaugeVec
	poolBorrowed    *prometheus.GaugeVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the process-wide lending metrics, registering the
// collectors on first use.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operations_total",
				Help: "Count of lending operations by method and result.",
			}, []string{"method", "result"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_liquidations_total",
				Help: "Count of executed liquidations.",
			}),
			scoreRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "credit_score_recomputes_total",
				Help: "Count of credit score recomputations past the cache window.",
			}),
			poolCollateral: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_pool_collateral",
				Help: "Total collateral locked per asset.",
			}, []string{"asset"}),
			poolBorrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_pool_borrowed",
				Help: "Total outstanding borrows per asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.liquidations,
			lendingRegistry.scoreRecomputes,
			lendingRegistry.poolCollateral,
			lendingRegistry.poolBorrowed,
		)
	})
	return lendingRegistry
}

// ObserveOperation records the outcome of a lending operation.
func (m *LendingMetrics) ObserveOperation(method, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(method, result).Inc()
}

// ObserveLiquidation counts an executed liquidation.
func (m *LendingMetrics) ObserveLiquidation() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

// ObserveScoreRecompute counts a credit score cache refresh.
func (m *LendingMetrics) ObserveScoreRecompute() {
	if m == nil {
		return
	}
	m.scoreRecomputes.Inc()
}

// SetPoolTotals updates the per-asset reserve gauges.
func (m *LendingMetrics) SetPoolTotals(asset string, collateral, borrowed float64) {
	if m == nil {
		return
	}
	m.poolCollateral.WithLabelValues(asset).Set(collateral)
	m.poolBorrowed.WithLabelValues(asset).Set(borrowed)
}
