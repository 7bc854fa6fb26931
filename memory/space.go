package memory

import (
	"sync"

	"github.com/pkg/errors"
)

// DefaultPageSize is the page granularity of Space.
const DefaultPageSize = 4096

var ErrBadRegion = errors.New("bad region request")

// Space is a page-granular guest address space backed by host memory. It
// is the reference Mapper the harness kernel and the tests run on; a real
// emulator plugs its own translation in instead.
//
// The lock guards the page tables only. Page contents are raw guest
// memory; racing guest threads see exactly the garbage they asked for.
type Space struct {
	mu       sync.RWMutex
	pageSize uint64
	pages    map[uint64]*page
}

type page struct {
	data []byte
	prot Prot
}

func NewSpace() *Space {
	return &Space{
		pageSize: DefaultPageSize,
		pages:    make(map[uint64]*page),
	}
}

func (s *Space) PageSize() uint64 {
	return s.pageSize
}

// Round rounds sz up to whole pages.
func (s *Space) Round(sz uint64) uint64 {
	if sz < s.pageSize {
		return s.pageSize
	}

	diff := sz % s.pageSize
	if diff == 0 {
		return sz
	}

	return sz + (s.pageSize - diff)
}

// Map backs [addr, addr+size) with zeroed pages under prot. addr must be
// page aligned and the range must not touch an existing page; size is
// rounded up to whole pages.
func (s *Space) Map(addr, size uint64, prot Prot) error {
	if addr%s.pageSize != 0 {
		return errors.Wrapf(ErrBadRegion, "address=%x not page aligned", addr)
	}

	size = s.Round(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	for base := addr; base < addr+size; base += s.pageSize {
		if _, ok := s.pages[base]; ok {
			return errors.Wrapf(ErrBadRegion, "page %x already mapped", base)
		}
	}

	for base := addr; base < addr+size; base += s.pageSize {
		s.pages[base] = &page{
			data: make([]byte, s.pageSize),
			prot: prot,
		}
	}

	return nil
}

// Unmap drops the pages covering [addr, addr+size). Holes in the range are
// ignored, same as munmap.
func (s *Space) Unmap(addr, size uint64) error {
	if addr%s.pageSize != 0 {
		return errors.Wrapf(ErrBadRegion, "address=%x not page aligned", addr)
	}

	size = s.Round(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	for base := addr; base < addr+size; base += s.pageSize {
		delete(s.pages, base)
	}

	return nil
}

// Protect changes the protection on every page of [addr, addr+size). The
// whole range must already be mapped.
func (s *Space) Protect(addr, size uint64, prot Prot) error {
	if addr%s.pageSize != 0 {
		return errors.Wrapf(ErrBadRegion, "address=%x not page aligned", addr)
	}

	size = s.Round(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	for base := addr; base < addr+size; base += s.pageSize {
		if _, ok := s.pages[base]; !ok {
			return errors.Wrapf(ErrBadRegion, "page %x not mapped", base)
		}
	}

	for base := addr; base < addr+size; base += s.pageSize {
		s.pages[base].prot = prot
	}

	return nil
}

// Page implements Mapper.
func (s *Space) Page(addr uint64) (Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	base := addr - addr%s.pageSize

	pg, ok := s.pages[base]
	if !ok {
		return Page{}, false
	}

	return Page{Base: base, Data: pg.data, Prot: pg.prot}, true
}
