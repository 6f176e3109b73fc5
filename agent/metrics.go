package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "moltguard_cycle_duration_sec",
	Help: "Total duration of agent cycles",
})

var cycleCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moltguard_cycles",
	Help: "Number of completed agent cycles",
})

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moltguard_decisions",
	Help: "Number of post decisions, by outcome",
}, []string{"outcome"})

var postsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moltguard_posts_fetched",
	Help: "Number of posts fetched from the platform",
}, []string{"community"})

var fetchErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moltguard_fetch_errors",
	Help: "Number of failed community fetches",
}, []string{"community"})

var scanVerdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moltguard_scan_verdicts",
	Help: "Number of scanner verdicts, by direction and risk level",
}, []string{"direction", "risk"})

var scanCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moltguard_scan_cache_hits",
	Help: "Number of input scans served from the verdict cache",
})

var modelCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "moltguard_model_call_duration_sec",
	Help: "Duration of model generate calls",
})

var modelCostTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moltguard_model_cost_usd",
	Help: "Estimated model spend in USD",
})

var platformThrottled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moltguard_platform_throttled",
	Help: "Number of rate limited platform responses",
})

var karmaGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "moltguard_karma",
	Help: "Last observed agent karma",
})

var persistErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moltguard_persist_errors",
	Help: "Number of failed state writes",
})
