/*
Package metrics collects storage engine metrics.

A Collector owns a private Prometheus registry so that several volumes in one
process never collide on registration. It exports:

	<namespace>_operations_total{operation,status}
	<namespace>_operation_duration_seconds{operation}
	<namespace>_operation_size_bytes{operation}
	<namespace>_enumeration_dropped_total{reason}
	<namespace>_dispatch_failures_total{operation}
	<namespace>_errors_total{operation,code}

Next to the Prometheus series the collector keeps plain counters per operation,
which admin status and tests read without scraping:

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		return err
	}
	collector.RecordOperation("put", 12*time.Millisecond, 512, true)
	http.Handle("/metrics", collector.Handler())

A nil *Collector, or one built from a disabled Config, accepts every call and
records nothing.
*/
package metrics
