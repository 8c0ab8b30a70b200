//go:build !linux

package serial

// Port is unavailable off linux; Open always fails.
type Port struct{}

func Open(cfg Config) (*Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrUnsupportedPlatform
}

func (p *Port) Name() string                { return "" }
func (p *Port) Read(b []byte) (int, error)  { return 0, ErrUnsupportedPlatform }
func (p *Port) Write(b []byte) (int, error) { return 0, ErrUnsupportedPlatform }
func (p *Port) Close() error                { return nil }
