//go:build windows

package natgen

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// container_pe_windows.go is the PE sibling of container_verify_unix.go's
// mmap check: once a PE container is on disk on an actual Windows host,
// clear any inherited read-only bit and stamp FILE_ATTRIBUTE_ARCHIVE on it,
// since this generator writes the executable directly rather than through
// an OS-aware archiver. Grounded on the teacher's filewatcher_windows.go/
// filewatcher_unix.go build-tag split (the teacher's only other OS-specific
// pair), generalised from "watch files for changes" to "stamp the file this
// generator just wrote."
func finalizePEAttributes(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("pe attributes: %s: %w", path, err)
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return fmt.Errorf("pe attributes: get %s: %w", path, err)
	}
	attrs &^= windows.FILE_ATTRIBUTE_READONLY
	attrs |= windows.FILE_ATTRIBUTE_ARCHIVE
	if err := windows.SetFileAttributes(p, attrs); err != nil {
		return fmt.Errorf("pe attributes: set %s: %w", path, err)
	}
	return nil
}
