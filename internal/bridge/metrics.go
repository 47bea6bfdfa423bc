package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "paramsync"

// Collector exports bridge statistics to Prometheus. Values are read from
// the bridge's counters at scrape time.
type Collector struct {
	bridge *Bridge

	esp32Received   *prometheus.Desc
	esp32Sent       *prometheus.Desc
	esp32Dropped    *prometheus.Desc
	esp32Discarded  *prometheus.Desc
	esp32Attempts   *prometheus.Desc
	esp32Connected  *prometheus.Desc
	esp32Heartbeat  *prometheus.Desc
	wsReceived      *prometheus.Desc
	wsSent          *prometheus.Desc
	wsDropped       *prometheus.Desc
	wsMalformed     *prometheus.Desc
	wsRelayed       *prometheus.Desc
	wsConnections   *prometheus.Desc
	peers           *prometheus.Desc
	parameters      *prometheus.Desc
	queueDepth      *prometheus.Desc
	updatesApplied  *prometheus.Desc
	ledUpdates      *prometheus.Desc
	eventsDropped   *prometheus.Desc
	mirrorPublished *prometheus.Desc
	mirrorCommands  *prometheus.Desc
}

// NewCollector returns a collector for b. Register it on a
// prometheus.Registry.
func NewCollector(b *Bridge) *Collector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, subsystem, name), help, labels, nil)
	}

	return &Collector{
		bridge: b,

		esp32Received:  desc("esp32", "messages_received_total", "Messages decoded from the serial device."),
		esp32Sent:      desc("esp32", "messages_sent_total", "Messages written to the serial device."),
		esp32Dropped:   desc("esp32", "messages_dropped_total", "Device-bound messages dropped while disconnected or on write failure."),
		esp32Discarded: desc("esp32", "lines_discarded_total", "Oversized serial lines discarded."),
		esp32Attempts:  desc("esp32", "connection_attempts_total", "Serial connection attempts."),
		esp32Connected: desc("esp32", "connected", "1 when the serial port is open."),
		esp32Heartbeat: desc("esp32", "last_heartbeat_timestamp_seconds", "Unix time of the last device heartbeat."),

		wsReceived:    desc("websocket", "messages_received_total", "Frames received from peers."),
		wsSent:        desc("websocket", "messages_sent_total", "Frames queued to peers."),
		wsDropped:     desc("websocket", "messages_dropped_total", "Frames skipped because a peer send buffer was full."),
		wsMalformed:   desc("websocket", "malformed_messages_total", "Peer frames that failed to decode."),
		wsRelayed:     desc("websocket", "relayed_total", "Sync frames relayed verbatim to other peers."),
		wsConnections: desc("websocket", "connections_total", "Peer connections accepted."),
		peers:         desc("websocket", "peers", "Currently connected peers."),

		parameters:     desc("registry", "parameters", "Parameters in the registry."),
		queueDepth:     desc("bridge", "queue_depth", "Device messages waiting to be forwarded."),
		updatesApplied: desc("router", "updates_applied_total", "Parameter updates applied to the registry."),
		ledUpdates:     desc("router", "led_updates_total", "LED updates sent to the device by outcome.", "outcome"),
		eventsDropped:  desc("router", "events_dropped_total", "Change events dropped by slow subscribers."),

		mirrorPublished: desc("mqtt", "published_total", "MQTT publishes by outcome.", "outcome"),
		mirrorCommands:  desc("mqtt", "commands_total", "MQTT parameter commands by outcome.", "outcome"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.esp32Received, c.esp32Sent, c.esp32Dropped, c.esp32Discarded,
		c.esp32Attempts, c.esp32Connected, c.esp32Heartbeat,
		c.wsReceived, c.wsSent, c.wsDropped, c.wsMalformed, c.wsRelayed,
		c.wsConnections, c.peers,
		c.parameters, c.queueDepth, c.updatesApplied, c.ledUpdates, c.eventsDropped,
		c.mirrorPublished, c.mirrorCommands,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	b := c.bridge
	dev := b.DeviceStats()
	hub := b.hub.Stats()
	rt := b.router.Stats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.esp32Received, dev.MessagesReceived)
	counter(c.esp32Sent, dev.MessagesSent)
	counter(c.esp32Dropped, dev.MessagesDropped)
	counter(c.esp32Discarded, dev.LinesDiscarded)
	counter(c.esp32Attempts, dev.ConnectionAttempts)
	if b.DeviceConnected() {
		gauge(c.esp32Connected, 1)
	} else {
		gauge(c.esp32Connected, 0)
	}
	if !dev.LastHeartbeat.IsZero() {
		gauge(c.esp32Heartbeat, float64(dev.LastHeartbeat.UnixMilli())/1000)
	}

	counter(c.wsReceived, hub.MessagesReceived)
	counter(c.wsSent, hub.MessagesSent)
	counter(c.wsDropped, hub.MessagesDropped)
	counter(c.wsMalformed, hub.MessagesMalformed)
	counter(c.wsRelayed, hub.Relayed)
	counter(c.wsConnections, hub.Connections)
	gauge(c.peers, float64(hub.Peers))

	gauge(c.parameters, float64(b.reg.Len()))
	gauge(c.queueDepth, float64(b.QueueLen()))
	counter(c.updatesApplied, rt.UpdatesApplied)
	counter(c.ledUpdates, rt.LEDUpdatesSent, "sent")
	counter(c.ledUpdates, rt.LEDUpdatesFailed, "failed")
	counter(c.eventsDropped, rt.EventsDropped)

	if b.mirror != nil {
		ms := b.mirror.Stats()
		counter(c.mirrorPublished, ms.Published, "ok")
		counter(c.mirrorPublished, ms.PublishFailed, "failed")
		counter(c.mirrorCommands, ms.CommandsApplied, "applied")
		counter(c.mirrorCommands, ms.CommandsRejected, "rejected")
	}
}
