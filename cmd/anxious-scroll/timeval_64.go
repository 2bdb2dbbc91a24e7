//go:build amd64 || arm64 || riscv64 || loong64 || ppc64 || ppc64le || mips64 || mips64le || s390x

package main

// timevalWord is the kernel's __kernel_ulong_t used for input_event time.
type timevalWord = int64
