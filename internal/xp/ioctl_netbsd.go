package xp

// iow builds a BSD _IOW request number.
func iow(group, num byte, size uintptr) uintptr {
	const iocIn = 0x80000000
	const iocParmMask = 0x1fff
	return iocIn | (size&iocParmMask)<<16 | uintptr(group)<<8 | uintptr(num)
}
