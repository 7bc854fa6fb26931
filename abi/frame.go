package abi

// Frame is the uniform eight-slot view of one syscall's arguments. Slots
// past the guest ABI's arity stay zero.
type Frame struct {
	Num  int64
	Args [MaxArgs]uint64
}

// ReadFrame marshals the argument registers into a Frame, truncating each
// value to the guest word and zero-filling the slots the ABI does not use.
func ReadFrame(cpu RegisterFile, num int64) Frame {
	fr := Frame{Num: num}

	n := cpu.Arity()
	if n > MaxArgs {
		n = MaxArgs
	}

	for i := 0; i < n; i++ {
		fr.Args[i] = Truncate(cpu.Word(), cpu.Arg(i))
	}

	return fr
}

// WriteArgs stores args back into the argument registers, truncated to the
// guest word. Slots beyond the ABI's arity have nowhere to live and are
// dropped.
func WriteArgs(cpu RegisterFile, args [MaxArgs]uint64) {
	n := cpu.Arity()
	if n > MaxArgs {
		n = MaxArgs
	}

	for i := 0; i < n; i++ {
		cpu.SetArg(i, Truncate(cpu.Word(), args[i]))
	}
}

// WriteRet stores the final return value into the return register,
// truncated to the guest word.
func WriteRet(cpu RegisterFile, raw uint64) {
	cpu.SetRet(Truncate(cpu.Word(), raw))
}

// SignExtendAll converts a raw argument block into the signed view hooks
// operate on.
func SignExtendAll(w Word, raw [MaxArgs]uint64) [MaxArgs]int64 {
	var out [MaxArgs]int64

	for i, v := range raw {
		out[i] = SignExtend(w, v)
	}

	return out
}

// TruncateAll converts hook-supplied signed values into register-sized raw
// values.
func TruncateAll(w Word, vals [MaxArgs]int64) [MaxArgs]uint64 {
	var out [MaxArgs]uint64

	for i, v := range vals {
		out[i] = FromInt(w, v)
	}

	return out
}
