package iodrv

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevDir is where the kernel module creates mesh device nodes. It can be
// redirected for testing or containerized runs.
var DevDir = "/dev"

// DeviceError reports that the mesh register space could not be opened or
// mapped. It is fatal before any session starts.
type DeviceError struct {
	MeshID int
	Reason string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("cmn%d device: %s", e.MeshID, e.Reason)
}

// Device is the mmapped register space of one mesh. Device node names have
// the form /dev/armcmn:CMN<id>:<physbase>:<size>.
type Device struct {
	path string
	mem  []byte
	size uint64
}

// Open finds the device node of a mesh, mmaps its register space, and
// returns the handle. The node must exist before the run starts.
func Open(meshID int, readonly bool) (*Device, error) {
	pattern := filepath.Join(DevDir, fmt.Sprintf("armcmn:CMN%d:*", meshID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &DeviceError{meshID, err.Error()}
	}
	if len(matches) == 0 {
		return nil, &DeviceError{meshID,
			"device file not found, is cmn-analyzer.ko loaded?"}
	}
	if len(matches) > 1 {
		return nil, &DeviceError{meshID, "duplicated device files found"}
	}

	path := matches[0]
	fields := strings.Split(path, ":")
	size, err := strconv.ParseUint(fields[len(fields)-1], 16, 64)
	if err != nil {
		return nil, &DeviceError{meshID,
			fmt.Sprintf("bad size in device name %q", path)}
	}

	flags := unix.O_RDWR
	prot := unix.PROT_READ | unix.PROT_WRITE
	if readonly {
		flags = unix.O_RDONLY
		prot = unix.PROT_READ
	}
	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		return nil, &DeviceError{meshID,
			fmt.Sprintf("open %s: %v", path, err)}
	}
	mem, err := unix.Mmap(fd, 0, int(size), prot, unix.MAP_SHARED)
	unix.Close(fd)
	if err != nil {
		return nil, &DeviceError{meshID,
			fmt.Sprintf("mmap %s: %v", path, err)}
	}

	return &Device{path: path, mem: mem, size: size}, nil
}

// Path returns the device node path.
func (d *Device) Path() string { return d.path }

// Size returns the size of the mapped register space in bytes.
func (d *Device) Size() uint64 { return d.size }

// Read returns the 64-bit register at byte offset reg.
func (d *Device) Read(reg uint64) uint64 {
	if reg+8 > d.size {
		panic(fmt.Sprintf("iodrv: register 0x%x beyond mapped space", reg))
	}
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&d.mem[reg])))
}

// Write stores value to the 64-bit register at byte offset reg.
func (d *Device) Write(reg uint64, value uint64) {
	if reg+8 > d.size {
		panic(fmt.Sprintf("iodrv: register 0x%x beyond mapped space", reg))
	}
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&d.mem[reg])), value)
}

// Close unmaps the register space.
func (d *Device) Close() error {
	if d.mem == nil {
		return nil
	}
	err := unix.Munmap(d.mem)
	d.mem = nil
	return err
}
