// Command wfp is a short alias for wfpath.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

func main() {
	bin, err := exec.LookPath("wfpath")
	if err != nil {
		fmt.Fprintln(os.Stderr, "wfp: wfpath not found on PATH")
		os.Exit(1)
	}
	if err := syscall.Exec(bin, append([]string{"wfpath"}, os.Args[1:]...), os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "wfp: %v\n", err)
		os.Exit(1)
	}
}
