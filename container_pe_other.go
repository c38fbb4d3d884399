//go:build !windows

package natgen

// finalizePEAttributes degrades to a no-op off Windows: cross-compiling a PE
// binary from Linux/macOS leaves no file-attribute bit on the host
// filesystem worth stamping.
func finalizePEAttributes(path string) error {
	return nil
}
