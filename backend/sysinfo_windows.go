package backend

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func totalMemory() uint64 {
	var ms windows.MemoryStatusEx
	ms.Length = uint32(unsafe.Sizeof(ms))
	if err := windows.GlobalMemoryStatusEx(&ms); err != nil {
		return 0
	}
	return ms.TotalPhys
}
