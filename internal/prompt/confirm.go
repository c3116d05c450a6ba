// Package prompt provides a minimal raw-mode terminal confirmation used
// before destructive operations (key changes, factory reset).
package prompt

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Confirm puts stdin into raw mode and waits for 'y' or 'n'/Ctrl-C,
// rendering prompt first. Returns true only on 'y' or 'Y'.
func Confirm(prompt string) bool {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// Not a terminal (e.g. piped input in a test harness): default to "no".
		fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
		return false
	}
	defer term.Restore(fd, oldState)

	fmt.Printf("%s [y/N]: ", prompt)
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			fmt.Print("\r\n")
			return false
		}
		switch buf[0] {
		case 'y', 'Y':
			fmt.Print("y\r\n")
			return true
		case 'n', 'N', 0x03:
			fmt.Print("n\r\n")
			return false
		}
	}
}
