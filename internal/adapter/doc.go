// Package adapter resolves symbolic debug adapter kinds (python, go, lldb,
// gdb) to executable commands via an explicit registry populated at startup.
package adapter
