package xp

// iow builds a Linux _IOW request number.
func iow(group, num byte, size uintptr) uintptr {
	const iocWrite = 1
	return iocWrite<<30 | size<<16 | uintptr(group)<<8 | uintptr(num)
}
