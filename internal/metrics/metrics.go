package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "twofa"

// Options controls construction of the collectors in this package.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = defaultNamespace
	}
	if o.Registerer == nil {
		o.Registerer = prometheus.DefaultRegisterer
	}
	if len(o.Buckets) == 0 {
		o.Buckets = prometheus.DefBuckets
	}
	return o
}

// register adds c to reg, reusing an identical collector that is already
// registered so that constructors can be called more than once per process.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register %s collector: %w", name, err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing %s collector has wrong type %T", name, already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// WriteTextfile dumps everything gathered by g in the node exporter textfile
// format. Short-lived processes such as the CLI use it instead of a scrape
// endpoint.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
