//go:build !linux

package platform

import "fmt"

// NewHosted is only available on Linux, where the shared-memory
// region can be backed by a real anonymous mmap and IRQ delivery by
// an eventfd. On other hosts, use Sim instead.
func NewHosted(sharedMemSize int, memMap []MemRegion) (*Hosted, error) {
	return nil, fmt.Errorf("platform: hosted platform requires linux; use platform.NewSim for this host")
}

// Hosted is an opaque placeholder type on non-Linux hosts.
type Hosted struct{}
