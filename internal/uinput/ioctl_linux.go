//go:build linux

package uinput

import "unsafe"

// Linux ioctl request encoding (asm-generic/ioctl.h).
const (
	iocNrShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	uinputBase = 'U'
)

func ioc(dir, num, size uintptr) uintptr {
	return dir<<iocDirShift | uinputBase<<iocTypeShift | num<<iocNrShift | size<<iocSizeShift
}

var (
	uiDevCreate  = ioc(iocNone, 1, 0)
	uiDevDestroy = ioc(iocNone, 2, 0)
	uiDevSetup   = ioc(iocWrite, 3, unsafe.Sizeof(devSetup{}))
	uiAbsSetup   = ioc(iocWrite, 4, unsafe.Sizeof(absSetup{}))

	uiSetEvBit  = ioc(iocWrite, 100, unsafe.Sizeof(int32(0)))
	uiSetKeyBit = ioc(iocWrite, 101, unsafe.Sizeof(int32(0)))
	uiSetAbsBit = ioc(iocWrite, 103, unsafe.Sizeof(int32(0)))
)

func uiGetSysname(n int) uintptr {
	return ioc(iocRead, 44, uintptr(n))
}
