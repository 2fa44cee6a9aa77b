// Package metrics centralizes the core's Prometheus collectors, the way
// OpenIM's pkg/common/prommetrics owns every gauge/counter its
// server-side packages update rather than letting each package declare
// its own. Registration happens once, in init, against the default
// registry; packages that want to report a value call the exported
// setters below instead of holding their own prometheus.Gauge.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	connectedAccounts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corerun_accounts_connected",
		Help: "Number of accounts currently in the CONNECTED connection state.",
	})
	notificationsUnread = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corerun_notifications_unread",
		Help: "Current NotificationManager unread_count across all instances added to this process.",
	})
	fileTransfersInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corerun_filetransfers_in_flight",
		Help: "Number of file transfers currently tracked by FileTransferManager instances.",
	})
	rosterQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corerun_roster_queue_depth",
		Help: "Number of roster mutations queued or in flight in the SSI holding queue.",
	})
)

func init() {
	prometheus.MustRegister(
		connectedAccounts,
		notificationsUnread,
		fileTransfersInFlight,
		rosterQueueDepth,
	)
}

// Enabled gates whether the setters below actually touch the
// collectors; config.MetricsDefaults.Enabled feeds this at process
// startup via SetEnabled. Default is enabled, so packages work without
// the host wiring config explicitly.
var enabled = true

// SetEnabled toggles whether subsequent Set* calls update the
// collectors. Disabling does not unregister them — a scrape still sees
// the last value they held.
func SetEnabled(v bool) { enabled = v }

// SetConnectedAccounts records the current count of CONNECTED accounts.
func SetConnectedAccounts(n int) {
	if enabled {
		connectedAccounts.Set(float64(n))
	}
}

// SetNotificationsUnread records the current unread notification count.
func SetNotificationsUnread(n int) {
	if enabled {
		notificationsUnread.Set(float64(n))
	}
}

// SetFileTransfersInFlight records the current in-flight transfer count.
func SetFileTransfersInFlight(n int) {
	if enabled {
		fileTransfersInFlight.Set(float64(n))
	}
}

// SetRosterQueueDepth records the current SSI holding-queue depth.
func SetRosterQueueDepth(n int) {
	if enabled {
		rosterQueueDepth.Set(float64(n))
	}
}
