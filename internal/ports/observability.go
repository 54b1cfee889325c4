package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)

	// component labels the metric series, e.g. the card ID.
	IncCounter(name, component string, v float64)
	ObserveLatency(name, component string, seconds float64)
	SetGauge(name, component string, v float64)
}

type Field struct {
	Key   string
	Value any
}
