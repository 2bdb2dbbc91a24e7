//go:build 386 || arm || mips || mipsle

package main

// timevalWord is the kernel's __kernel_ulong_t used for input_event time.
// 32-bit userspace keeps the 32-bit layout even with a 64-bit time_t libc.
type timevalWord = int32
