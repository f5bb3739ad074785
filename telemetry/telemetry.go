package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures events emitted while configurations are loaded.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. Hooks run inline with the load, so they should be cheap.
type Collector interface {
	IncLoad(file string)
	IncLoadFailure(kind string)
	AddSpecs(kind string, count int)
	IncReload(file string)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncLoad(string)        {}
func (noopCollector) IncLoadFailure(string) {}
func (noopCollector) AddSpecs(string, int)  {}
func (noopCollector) IncReload(string)      {}

// PrometheusCollector exposes load counters via Prometheus.
type PrometheusCollector struct {
	loads    *prometheus.CounterVec
	failures *prometheus.CounterVec
	specs    *prometheus.CounterVec
	reloads  *prometheus.CounterVec
}

var (
	counterLock sync.Mutex
	counters    = make(map[string]*prometheus.CounterVec)
)

// NewPrometheusCollector registers the required metrics with the provided registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	loads, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "geoconfig_config_loads_total",
		Help: "Number of configuration files loaded successfully, including hierarchy levels.",
	}, "file")
	if err != nil {
		return nil, err
	}
	failures, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "geoconfig_config_load_failures_total",
		Help: "Number of configuration loads that failed, by error kind.",
	}, "kind")
	if err != nil {
		return nil, err
	}
	specs, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "geoconfig_specs_classified_total",
		Help: "Number of configuration leaves classified, by spec kind.",
	}, "kind")
	if err != nil {
		return nil, err
	}
	reloads, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "geoconfig_config_reloads_total",
		Help: "Number of reloads triggered per configuration source file.",
	}, "file")
	if err != nil {
		return nil, err
	}
	return &PrometheusCollector{loads: loads, failures: failures, specs: specs, reloads: reloads}, nil
}

func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts, label string) (*prometheus.CounterVec, error) {
	counterLock.Lock()
	defer counterLock.Unlock()
	if existing, ok := counters[opts.Name]; ok {
		return existing, nil
	}
	counter := prometheus.NewCounterVec(opts, []string{label})
	if err := reg.Register(counter); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		counter = existing
	}
	counters[opts.Name] = counter
	return counter, nil
}

// IncLoad increments the load counter for the provided file path.
func (p *PrometheusCollector) IncLoad(file string) {
	if p == nil || p.loads == nil {
		return
	}
	p.loads.WithLabelValues(file).Inc()
}

// IncLoadFailure records a failed load.
func (p *PrometheusCollector) IncLoadFailure(kind string) {
	if p == nil || p.failures == nil {
		return
	}
	p.failures.WithLabelValues(kind).Inc()
}

// AddSpecs records classified leaves of one kind.
func (p *PrometheusCollector) AddSpecs(kind string, count int) {
	if p == nil || p.specs == nil || count <= 0 {
		return
	}
	p.specs.WithLabelValues(kind).Add(float64(count))
}

// IncReload increments the reload counter for the provided file path.
func (p *PrometheusCollector) IncReload(file string) {
	if p == nil || p.reloads == nil {
		return
	}
	p.reloads.WithLabelValues(file).Inc()
}
