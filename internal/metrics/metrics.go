// Package metrics defines the minimal instrumentation contract the pipeline
// emits against. Pipeline code depends only on Backend; concrete backends
// (datadog, prompush) live in subpackages so their SDKs never leak into core
// code.
package metrics

// Labels attaches dimensions to a metric observation.
type Labels map[string]string

// Metric names emitted by the pipeline. Backends may ignore names they do
// not recognize.
const (
	// StepTotal counts stage executions. Labels: step, status.
	StepTotal = "pipeline_step_total"

	// RecordsTotal counts rows produced per category. Labels: category.
	RecordsTotal = "pipeline_records_total"

	// JoinKeysTotal counts distinct composite keys in a combined run.
	JoinKeysTotal = "pipeline_join_keys_total"

	// StepDurationSeconds observes stage wall time. Labels: step, status.
	StepDurationSeconds = "pipeline_step_duration_seconds"
)

// Backend receives metric observations.
//
// Implementations must be safe for concurrent use. Flush pushes buffered
// observations out; Close flushes one final time and releases resources.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
	Close() error
}

// Nop is a Backend that drops everything. Useful as the default when no
// metrics backend is configured.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }
func (Nop) Close() error                             { return nil }

var _ Backend = Nop{}
