package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики сервисов.
//
// Регистрируются в DefaultRegisterer при импорте пакета;
// каждый сервис отдаёт их через promhttp.Handler() на /metrics.
var (
	// RunsStarted — количество запущенных прогонов.
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyforge_runs_started_total",
		Help: "Number of generation runs started.",
	})

	// RunsFinished — количество завершённых прогонов по финальному статусу.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyforge_runs_finished_total",
		Help: "Number of generation runs finished, by terminal status.",
	}, []string{"status"})

	// ItemsProcessed — количество обработанных элементов по результату.
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyforge_items_total",
		Help: "Number of work items processed, by result.",
	}, []string{"result"})

	// ActiveRun — 1, если прогон активен (RUNNING или PAUSED).
	ActiveRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storyforge_active_run",
		Help: "Whether a generation run is currently active.",
	})

	// Downloads — количество скачиваний по результату.
	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyforge_downloads_total",
		Help: "Number of artifact downloads, by result.",
	}, []string{"result"})

	// EventsPublished — количество опубликованных событий по типу.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyforge_events_published_total",
		Help: "Number of events published to the event exchange, by type.",
	}, []string{"type"})
)

// Значения label result.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)
