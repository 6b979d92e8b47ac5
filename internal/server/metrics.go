package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests     prometheus.Counter
	DataRequests prometheus.Counter
	BytesServed  prometheus.Counter
	Redirects    prometheus.Counter
	NotFound     prometheus.Counter
	AuthRejected prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_http_requests",
			Help: "Total number of HTTP requests handled",
		}),
		DataRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_data_requests",
			Help: "Total number of requests for dataset files",
		}),
		BytesServed: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_bytes_served",
			Help: "Total number of response bytes written",
		}),
		Redirects: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_bucket_redirects",
			Help: "Total number of dataset requests redirected to the bucket",
		}),
		NotFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_not_found",
			Help: "Total number of requests for files that do not exist",
		}),
		AuthRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_auth_rejected",
			Help: "Total number of requests rejected by basic auth",
		}),
	}
}
