package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	packetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlstatsd_packets_total",
		Help: "Total number of payloads accepted into the engine",
	})

	eventsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlstatsd_events_parsed_total",
		Help: "Total number of log lines parsed into events",
	})

	eventsIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlstatsd_events_ignored_total",
		Help: "Total number of lines ignored or unsupported",
	})

	eventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlstatsd_events_failed_total",
		Help: "Total number of events that failed processing",
	})

	eventsLoadShed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlstatsd_events_load_shed_total",
		Help: "Total number of payloads dropped because a lane was full",
	})

	unknownServers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlstatsd_unknown_server_packets_total",
		Help: "Total number of payloads dropped from unregistered sources",
	})

	queueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlstatsd_queue_depth",
		Help: "Current number of payloads waiting across all lanes",
	})

	activePlayersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlstatsd_active_players_count",
		Help: "Live player count across tracked servers",
	})

	handlerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hlstatsd_handler_duration_seconds",
		Help:    "End-to-end processing duration per payload",
		Buckets: prometheus.DefBuckets,
	})
)
