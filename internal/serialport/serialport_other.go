//go:build !linux

package serialport

import "time"

// Port is unavailable on this platform.
type Port struct{}

// Open always fails with ErrUnsupported.
func Open(cfg Config) (*Port, error) {
	return nil, ErrUnsupported
}

func (p *Port) Name() string                    { return "" }
func (p *Port) Read(b []byte) (int, error)      { return 0, ErrUnsupported }
func (p *Port) Write(b []byte) (int, error)     { return 0, ErrUnsupported }
func (p *Port) SendBreak(d time.Duration) error { return ErrUnsupported }
func (p *Port) Drain() error                    { return ErrUnsupported }
func (p *Port) Close() error                    { return nil }
