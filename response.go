package pubkit

// Empty is the shaped response of operations whose payload carries nothing
// the caller needs.
type Empty struct{}

// Callback receives the outcome of a call. The response is the zero value
// whenever status.Error is true.
type Callback[R any] func(status Status, response R)
