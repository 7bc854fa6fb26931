package abi

// Word is the guest register width in bytes. Values crossing into hooks are
// sign-extended from this width; values written back into registers are
// truncated to it.
type Word int

const (
	Word32 Word = 4
	Word64 Word = 8
)

func (w Word) Bits() int {
	return int(w) * 8
}

// Truncate masks raw down to the guest word.
func Truncate(w Word, raw uint64) uint64 {
	if w == Word32 {
		return raw & 0xffffffff
	}

	return raw
}

// SignExtend interprets raw as a signed value of the guest word.
func SignExtend(w Word, raw uint64) int64 {
	if w == Word32 {
		return int64(int32(uint32(raw)))
	}

	return int64(raw)
}

// FromInt converts a hook-supplied signed value back into a register-sized
// raw value.
func FromInt(w Word, v int64) uint64 {
	return Truncate(w, uint64(v))
}

// MaxArgs is the widest syscall argument register count across the ABIs we
// care about. Hooks always see exactly this many argument slots; guests
// with fewer argument registers get trailing zeros.
const MaxArgs = 8

// RegisterFile is the guest CPU state the bridge reads arguments from and
// writes results into. Implementations are plain accessors over the
// emulator's register storage; register access cannot fault.
type RegisterFile interface {
	// Word is the guest register width.
	Word() Word

	// Arity is the number of argument-passing registers the guest ABI
	// defines, at most MaxArgs.
	Arity() int

	// Arg returns the raw value of argument register i, 0-based, i < Arity.
	Arg(i int) uint64

	// SetArg stores a raw value into argument register i.
	SetArg(i int, v uint64)

	// Ret returns the raw value of the return register.
	Ret() uint64

	// SetRet stores a raw value into the return register.
	SetRet(v uint64)
}
