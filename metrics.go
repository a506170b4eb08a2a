package duplex

import "expvar"

var (
	channelMetrics = new(expvar.Map)

	channelsActiveGauge = new(expvar.Int)
	packagesWritten     = new(expvar.Int)
	packagesRead        = new(expvar.Int)
	writeErrorsCount    = new(expvar.Int)
	handlerErrorsCount  = new(expvar.Int)
	bytesWrittenCount   = new(expvar.Int)
	bytesReadCount      = new(expvar.Int)
)

func init() {
	channelMetrics.Set("channels_active", channelsActiveGauge)
	channelMetrics.Set("packages_written", packagesWritten)
	channelMetrics.Set("packages_read", packagesRead)
	channelMetrics.Set("write_errors", writeErrorsCount)
	channelMetrics.Set("handler_errors", handlerErrorsCount)
	channelMetrics.Set("bytes_written", bytesWrittenCount)
	channelMetrics.Set("bytes_read", bytesReadCount)
}

// Metrics returns a map of exported channel metrics for use with the expvar
// package. This map is shared among all channels created by New. The caller
// is free to add or remove metrics in the map, but note that such changes
// will affect all channels.
//
// The caller is responsible for publishing the metrics to the exporter via
// expvar.Publish or similar.
func Metrics() *expvar.Map { return channelMetrics }

// Names of the per-channel metrics recorded in Options.Metrics.
const (
	MetricPackagesWritten = "packages_written"
	MetricPackagesRead    = "packages_read"
	MetricWriteErrors     = "write_errors"
	MetricHandlerErrors   = "handler_errors"
	MetricBytesWritten    = "bytes_written"
	MetricBytesRead       = "bytes_read"
	MetricMaxFrameBytes   = "max_frame_bytes"
)
