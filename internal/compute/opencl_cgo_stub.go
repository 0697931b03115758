//go:build !opencl
// +build !opencl

package compute

// NewOpenCL is available when built with -tags opencl. Without the tag,
// RuntimeParams.Adapter should be left nil (defaulting to Simulated) or
// point at a caller-supplied Adapter.
func NewOpenCL() Adapter {
	return nil
}
