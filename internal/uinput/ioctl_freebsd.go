//go:build freebsd

package uinput

import "unsafe"

// FreeBSD ioctl request encoding (sys/ioccom.h).
const (
	iocparmShift = 13
	iocparmMask  = (1 << iocparmShift) - 1

	iocVoid = 0x20000000
	iocOut  = 0x40000000
	iocIn   = 0x80000000

	uinputBase = 'U'
)

func ioc(dir, num, size uintptr) uintptr {
	return dir | ((size & iocparmMask) << 16) | (uinputBase << 8) | num
}

var (
	uiDevCreate  = ioc(iocVoid, 1, 0)
	uiDevDestroy = ioc(iocVoid, 2, 0)
	uiDevSetup   = ioc(iocIn, 3, unsafe.Sizeof(devSetup{}))
	uiAbsSetup   = ioc(iocIn, 4, unsafe.Sizeof(absSetup{}))

	// _IOWINT requests take the int argument by value.
	uiSetEvBit  = ioc(iocVoid, 100, unsafe.Sizeof(int32(0)))
	uiSetKeyBit = ioc(iocVoid, 101, unsafe.Sizeof(int32(0)))
	uiSetAbsBit = ioc(iocVoid, 103, unsafe.Sizeof(int32(0)))
)

func uiGetSysname(n int) uintptr {
	return ioc(iocOut, 44, uintptr(n))
}
