package observe

// Instruments bundles the telemetry pieces the pipeline wires around each
// call.
type Instruments struct {
	Tracer  Tracer
	Metrics Metrics
	Logger  Logger
}

// NewInstruments builds Instruments from an Observer.
// This is a convenience function for common use cases.
func NewInstruments(obs Observer) (Instruments, error) {
	if obs == nil {
		return Instruments{}, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return Instruments{}, err
	}

	return Instruments{
		Tracer:  NewTracer(obs.Tracer()),
		Metrics: metrics,
		Logger:  obs.Logger(),
	}, nil
}

// NoopInstruments returns Instruments that discard everything.
func NoopInstruments() Instruments {
	return Instruments{
		Tracer:  NewNoopTracer(),
		Metrics: NewNoopMetrics(),
		Logger:  NewNoopLogger(),
	}
}
