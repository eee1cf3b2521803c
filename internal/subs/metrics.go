package subs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gaspardpetit/unraidlink/internal/metrics"
)

var (
	activeChannelsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "unraidlink_subscription_channels",
		Help: "Number of live subscription channels",
	})
	reconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unraidlink_subscription_reconnects_total",
		Help: "Total number of subscription reconnect attempts",
	})
	eventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unraidlink_subscription_events_total",
		Help: "Total number of subscription events delivered to consumers",
	})
	channelFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unraidlink_subscription_failures_total",
		Help: "Total number of channels that exhausted their retry budget",
	})
)

func init() {
	metrics.Registry.MustRegister(
		activeChannelsGauge,
		reconnectsTotal,
		eventsTotal,
		channelFailuresTotal,
	)
}
