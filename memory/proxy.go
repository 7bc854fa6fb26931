package memory

import (
	"bytes"

	"github.com/pkg/errors"
)

// StringLimit bounds ReadString against unterminated or hostile pointers.
const StringLimit = 4096

// Proxy performs validated guest memory access on behalf of hook callbacks.
// Every call walks the Mapper's live page tables, so a mapping change made
// by an earlier syscall is always observed by the next access.
type Proxy struct {
	M Mapper
}

// Read copies size bytes of guest memory starting at addr. The whole range
// is validated mapped and readable before the result buffer is allocated;
// on any fault the read fails and no bytes are returned.
func (p Proxy) Read(addr, size uint64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	if addr+size < addr {
		return nil, errors.Wrapf(ErrInvalidAccess,
			"read of address=%x size=%d wraps the address space", addr, size)
	}

	end := addr + size
	for cur := addr; cur < end; {
		pg, err := p.resolve(cur, ProtRead)
		if err != nil {
			return nil, errors.Wrapf(err, "read of address=%x size=%d", addr, size)
		}

		cur = pg.Base + uint64(len(pg.Data))
	}

	out := make([]byte, 0, size)

	for cur := addr; cur < end; {
		pg, err := p.resolve(cur, ProtRead)
		if err != nil {
			return nil, errors.Wrapf(err, "read of address=%x size=%d", addr, size)
		}

		off := cur - pg.Base
		chunk := pg.Data[off:]
		if max := end - cur; uint64(len(chunk)) > max {
			chunk = chunk[:max]
		}

		out = append(out, chunk...)
		cur += uint64(len(chunk))
	}

	return out, nil
}

// Write copies data into guest memory starting at addr. The whole range is
// validated writable before any byte is stored, so a bad range never tears
// the guest. A concurrent unmap can still fault the copy partway; callers
// must treat any error as the entire write being unreliable.
func (p Proxy) Write(addr uint64, data []byte) error {
	size := uint64(len(data))
	if size == 0 {
		return nil
	}

	if addr+size < addr {
		return errors.Wrapf(ErrInvalidAccess,
			"write of address=%x size=%d wraps the address space", addr, size)
	}

	end := addr + size
	for cur := addr; cur < end; {
		pg, err := p.resolve(cur, ProtWrite)
		if err != nil {
			return errors.Wrapf(err, "write of address=%x size=%d", addr, size)
		}

		cur = pg.Base + uint64(len(pg.Data))
	}

	src := data
	for cur := addr; cur < end; {
		pg, err := p.resolve(cur, ProtWrite)
		if err != nil {
			return errors.Wrapf(err, "write of address=%x size=%d", addr, size)
		}

		off := cur - pg.Base
		n := copy(pg.Data[off:], src)

		src = src[n:]
		cur += uint64(n)
	}

	return nil
}

// ReadString reads a NUL-terminated guest string starting at addr. Strings
// are capped at StringLimit bytes: when no terminator shows up within the
// cap, the capped content is returned without error. A fault before the
// terminator fails the read, including addr itself being unmapped.
func (p Proxy) ReadString(addr uint64) (string, error) {
	var out []byte

	end := addr + StringLimit
	if end < addr {
		end = ^uint64(0)
	}

	for cur := addr; cur < end; {
		pg, err := p.resolve(cur, ProtRead)
		if err != nil {
			return "", errors.Wrapf(err, "string read at address=%x", addr)
		}

		off := cur - pg.Base
		chunk := pg.Data[off:]
		if max := end - cur; uint64(len(chunk)) > max {
			chunk = chunk[:max]
		}

		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			return string(append(out, chunk[:i]...)), nil
		}

		out = append(out, chunk...)
		cur += uint64(len(chunk))
	}

	return string(out), nil
}

func (p Proxy) resolve(cur uint64, need Prot) (Page, error) {
	pg, ok := p.M.Page(cur)
	if !ok {
		return Page{}, errors.Wrapf(ErrInvalidAccess, "address=%x not mapped", cur)
	}

	if pg.Prot&need == 0 {
		return Page{}, errors.Wrapf(ErrInvalidAccess, "address=%x protection %s", cur, pg.Prot)
	}

	return pg, nil
}
