// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for rendered-audio encoders
package encode

// Encoder consumes blocks of interleaved float32 samples
type Encoder interface {
	// Encode appends samples to the output
	Encode(samples []float32) error

	// Close flushes headers and releases encoder resources
	Close() error
}
