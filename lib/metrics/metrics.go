// Package metrics holds the prometheus instrumentation shared by the syskit
// subsystems.
//
// The collectors live on a private registry so that importing syskit as a
// library never pollutes the application's default registry. Everything here
// is advisory - no subsystem reads a metric to make a decision.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	// PoolTasksPushed counts tasks accepted by pool.Push.
	PoolTasksPushed = factory.NewCounter(prometheus.CounterOpts{
		Name: "syskit_pool_tasks_pushed_total",
		Help: "Number of tasks pushed into worker pools.",
	})

	// PoolTasksCompleted counts tasks whose function has returned.
	PoolTasksCompleted = factory.NewCounter(prometheus.CounterOpts{
		Name: "syskit_pool_tasks_completed_total",
		Help: "Number of tasks run to completion by worker pools.",
	})

	// PoolWorkersSpawned counts lazily created pool workers.
	PoolWorkersSpawned = factory.NewCounter(prometheus.CounterOpts{
		Name: "syskit_pool_workers_spawned_total",
		Help: "Number of worker goroutines spawned by worker pools.",
	})

	// PoolQueueLength tracks the number of tasks waiting to be dequeued.
	PoolQueueLength = factory.NewGauge(prometheus.GaugeOpts{
		Name: "syskit_pool_queue_length",
		Help: "Tasks currently queued in worker pools.",
	})

	// ShellCommandsExecuted counts external commands run by the shell.
	ShellCommandsExecuted = factory.NewCounter(prometheus.CounterOpts{
		Name: "syskit_shell_commands_executed_total",
		Help: "Number of commands executed by the shell engine.",
	})
)

// Handler returns an http.Handler serving the syskit metrics in the
// prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
