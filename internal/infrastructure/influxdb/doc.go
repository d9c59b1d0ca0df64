// Package influxdb records every published media state as a point in the
// media_state measurement.
//
// The sink is optional. With influxdb.enabled false Connect returns
// ErrDisabled and the bridge runs without it:
//
//	sink, err := influxdb.Connect(cfg.InfluxDB)
//	switch {
//	case errors.Is(err, influxdb.ErrDisabled):
//	    // no telemetry
//	case err != nil:
//	    return err
//	}
//	defer sink.Close()
//	sink.SetOnError(func(err error) { log.Warn("influx write failed", "error", err) })
//
// Writes are batched by influxdb-client-go and never block the caller.
package influxdb
