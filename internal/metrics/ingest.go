package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ingestFilesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cvintake",
		Subsystem: "ingest",
		Name:      "files_total",
		Help:      "按结果分类的已处理上传文件总数。",
	},
	[]string{"outcome"},
)

// ObserveIngestOutcome 记录单个文件的处理结果（success/duplicate/failure）。
func ObserveIngestOutcome(outcome string) {
	ingestFilesTotal.WithLabelValues(outcome).Inc()
}
