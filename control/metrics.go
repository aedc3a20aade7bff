// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics for fibers, channels and timers, exported through
// prometheus. A nil *Metrics is valid and records nothing, so components
// can call it unconditionally.

package control

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all collectors.
type Metrics struct {
	fibersRunning   prometheus.Gauge
	tasksExecuted   prometheus.Counter
	tasksPanicked   prometheus.Counter
	tasksDiscarded  prometheus.Counter
	publishes       prometheus.Counter
	deliveries      prometheus.Counter
	deliveryDropped prometheus.Counter
	timersFired     prometheus.Counter
	timersCancelled prometheus.Counter
	timersSkipped   prometheus.Counter
}

// NewMetrics creates the collectors under namespace and registers them
// with reg. A nil reg creates unregistered collectors.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	counter := func(subsystem, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		fibersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fiber",
			Name:      "running",
			Help:      "Fibers currently in the Running state.",
		}),
		tasksExecuted:   counter("fiber", "tasks_executed_total", "Tasks executed by fibers."),
		tasksPanicked:   counter("fiber", "tasks_panicked_total", "Tasks that panicked and were recovered."),
		tasksDiscarded:  counter("fiber", "tasks_discarded_total", "Queued tasks discarded by Stop."),
		publishes:       counter("channel", "publishes_total", "Publish calls that reached at least one subscriber."),
		deliveries:      counter("channel", "deliveries_total", "Delivery tasks enqueued onto subscriber fibers."),
		deliveryDropped: counter("channel", "deliveries_dropped_total", "Deliveries rejected by stopped fibers."),
		timersFired:     counter("timer", "fired_total", "Timer actions handed to fibers."),
		timersCancelled: counter("timer", "cancelled_total", "Timers cancelled."),
		timersSkipped:   counter("timer", "skipped_total", "Recurring firings skipped because the previous one was still queued."),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.fibersRunning, m.tasksExecuted, m.tasksPanicked, m.tasksDiscarded,
		m.publishes, m.deliveries, m.deliveryDropped,
		m.timersFired, m.timersCancelled, m.timersSkipped,
	}
}

func (m *Metrics) FiberStarted() {
	if m != nil {
		m.fibersRunning.Inc()
	}
}

func (m *Metrics) FiberStopped() {
	if m != nil {
		m.fibersRunning.Dec()
	}
}

func (m *Metrics) TaskExecuted() {
	if m != nil {
		m.tasksExecuted.Inc()
	}
}

func (m *Metrics) TaskPanicked() {
	if m != nil {
		m.tasksPanicked.Inc()
	}
}

func (m *Metrics) TasksDiscarded(n int) {
	if m != nil && n > 0 {
		m.tasksDiscarded.Add(float64(n))
	}
}

func (m *Metrics) Published() {
	if m != nil {
		m.publishes.Inc()
	}
}

func (m *Metrics) Delivered() {
	if m != nil {
		m.deliveries.Inc()
	}
}

func (m *Metrics) DeliveryDropped() {
	if m != nil {
		m.deliveryDropped.Inc()
	}
}

func (m *Metrics) TimerFired() {
	if m != nil {
		m.timersFired.Inc()
	}
}

func (m *Metrics) TimerCancelled() {
	if m != nil {
		m.timersCancelled.Inc()
	}
}

func (m *Metrics) TimerSkipped() {
	if m != nil {
		m.timersSkipped.Inc()
	}
}
