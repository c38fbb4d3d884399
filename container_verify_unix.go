//go:build linux || darwin

package natgen

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// container_verify_unix.go is the [EXPANSION] output-verification step: once
// a Linux/macOS binary is on disk, mmap it PROT_READ and confirm the
// container magic this generator just wrote actually round-trips, rather
// than trusting the byte slice Generate already held in memory. Grounded on
// the teacher's filewatcher_unix.go/filewatcher_darwin.go — the only two
// teacher files reaching for golang.org/x/sys/unix, there for inotify/
// FSEvents hot-reload; the same "talk to the kernel directly" idiom now
// verifies output instead of watching input.
func VerifyOutput(path string, format ContainerFormat) error {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("verify: opening %s: %w", path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return fmt.Errorf("verify: stat %s: %w", path, err)
	}
	if st.Size < 16 {
		return fmt.Errorf("verify: %s is too small to hold a container header (%d bytes)", path, st.Size)
	}

	mapped, err := unix.Mmap(fd, 0, 16, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return fmt.Errorf("verify: mmap %s: %w", path, err)
	}
	defer unix.Munmap(mapped)

	if !magicMatches(mapped, format) {
		return fmt.Errorf("verify: %s does not start with the expected %s magic", path, formatName(format))
	}
	return nil
}

func magicMatches(header []byte, format ContainerFormat) bool {
	switch format {
	case ContainerELF:
		return header[0] == 0x7f && header[1] == 'E' && header[2] == 'L' && header[3] == 'F'
	case ContainerMachO:
		return (header[0] == 0xcf && header[1] == 0xfa && header[2] == 0xed && header[3] == 0xfe) ||
			(header[0] == 0xfe && header[1] == 0xed && header[2] == 0xfa && header[3] == 0xcf)
	case ContainerPE:
		return header[0] == 'M' && header[1] == 'Z'
	default:
		return true // raw containers have no fixed magic to check
	}
}

func formatName(format ContainerFormat) string {
	switch format {
	case ContainerELF:
		return "ELF"
	case ContainerMachO:
		return "Mach-O"
	case ContainerPE:
		return "PE"
	default:
		return "raw"
	}
}
