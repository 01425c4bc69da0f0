// Package metrics exposes SensorHub counters in the Prometheus format.
//
//	m := metrics.New()
//	_ = m.RegisterDB(db.DB)
//	router.Handle("/metrics", m.Handler())
package metrics
