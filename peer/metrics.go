package peer

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "chanrescue"

// pumpMetrics holds the counters a MsgPump maintains.
type pumpMetrics struct {
	msgsSent     prometheus.Counter
	sendFailures prometheus.Counter
}

// newPumpMetrics creates the pump counters and registers them with reg. A nil
// registerer leaves the counters unregistered, which is what most tests want.
func newPumpMetrics(reg prometheus.Registerer) (*pumpMetrics, error) {
	m := &pumpMetrics{
		msgsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pump",
			Name:      "msgs_sent_total",
			Help:      "Number of messages handed to the sender.",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pump",
			Name:      "send_failures_total",
			Help:      "Number of messages the sender failed to send.",
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.msgsSent, m.sendFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
