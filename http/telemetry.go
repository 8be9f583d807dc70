package http

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/freekieb7/httpd/http"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	connAcceptedCnt metric.Int64Counter
	connActiveCnt   metric.Int64UpDownCounter
	requestCnt      metric.Int64Counter
	handlerFailCnt  metric.Int64Counter
	requestDuration metric.Float64Histogram
)

func init() {
	var err error
	connAcceptedCnt, err = meter.Int64Counter("httpd.connections.accepted",
		metric.WithDescription("Connections accepted by the listener"),
		metric.WithUnit("{connection}"))
	if err != nil {
		panic(err)
	}

	connActiveCnt, err = meter.Int64UpDownCounter("httpd.connections.active",
		metric.WithDescription("Connections currently owned by a worker"),
		metric.WithUnit("{connection}"))
	if err != nil {
		panic(err)
	}

	requestCnt, err = meter.Int64Counter("httpd.requests",
		metric.WithDescription("Requests answered, by method and status"),
		metric.WithUnit("{request}"))
	if err != nil {
		panic(err)
	}

	handlerFailCnt, err = meter.Int64Counter("httpd.handler.failures",
		metric.WithDescription("Handler errors and panics answered with 500"),
		metric.WithUnit("{failure}"))
	if err != nil {
		panic(err)
	}

	requestDuration, err = meter.Float64Histogram("httpd.request.duration",
		metric.WithDescription("Time from parsed request to flushed response"),
		metric.WithUnit("s"))
	if err != nil {
		panic(err)
	}
}
