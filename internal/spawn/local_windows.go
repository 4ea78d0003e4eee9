//go:build windows

package spawn

// LocalSpawner is a stub on Windows. Proper support would require ConPTY
// (Console Pseudo Terminal), available in Windows 10 1809+, which needs
// significant additional implementation work.
type LocalSpawner struct{}

// NewLocalSpawner returns a Spawner whose Spawn always fails with
// ErrNotSupported on Windows.
func NewLocalSpawner() *LocalSpawner {
	return &LocalSpawner{}
}

// Spawn returns ErrNotSupported on Windows.
func (s *LocalSpawner) Spawn(cfg Config, cb Callbacks) (Process, error) {
	return nil, ErrNotSupported
}
