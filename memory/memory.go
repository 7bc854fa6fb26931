package memory

import (
	"github.com/pkg/errors"
)

// Prot describes the protection bits on one guest page.
type Prot int

const (
	ProtNone Prot = 0
	ProtRead Prot = 1 << (iota - 1)
	ProtWrite
	ProtExec

	ProtAll = ProtRead | ProtWrite | ProtExec
)

func (p Prot) Readable() bool {
	return p&ProtRead != 0
}

func (p Prot) Writable() bool {
	return p&ProtWrite != 0
}

func (p Prot) String() string {
	out := []byte("---")

	if p&ProtRead != 0 {
		out[0] = 'r'
	}
	if p&ProtWrite != 0 {
		out[1] = 'w'
	}
	if p&ProtExec != 0 {
		out[2] = 'x'
	}

	return string(out)
}

// Page is one resolved guest page: the host bytes backing it and its
// current protection. Base is the guest address of its first byte and
// len(Data) is the page size.
type Page struct {
	Base uint64
	Data []byte
	Prot Prot
}

// Mapper is the emulator's address translation facility. Page resolves the
// guest page containing addr against the live page tables. Results must
// not be held across calls; guest mappings change whenever a syscall like
// mmap or munmap runs, so every access re-resolves.
type Mapper interface {
	PageSize() uint64
	Page(addr uint64) (Page, bool)
}

var ErrInvalidAccess = errors.New("invalid guest memory access")
