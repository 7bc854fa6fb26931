package abi

// Errno values returned by the reference kernel, amd64 numbering. Handlers
// return them negated, the same shape the guest sees in the return
// register.
const (
	EPERM  = 1
	ENOENT = 2
	EIO    = 5
	EBADF  = 9
	EACCES = 13
	EFAULT = 14
	EINVAL = 22
	EMFILE = 24
	ESPIPE = 29
	ENOSYS = 38
)

// open(2) flag bits understood by the reference kernel.
const (
	O_RDONLY  = 0x0
	O_WRONLY  = 0x1
	O_RDWR    = 0x2
	O_ACCMODE = 0x3
	O_CREAT   = 0x40
)

// mmap(2) flag bits understood by the reference kernel.
const (
	MAP_SHARED    = 0x1
	MAP_PRIVATE   = 0x2
	MAP_FIXED     = 0x10
	MAP_ANONYMOUS = 0x20
)

// lseek(2) whence values.
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)

// openat(2) dirfd sentinel.
const AT_FDCWD = -100
