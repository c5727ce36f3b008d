// Package utils provides utility functions.
package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Confirm prompts the user with msg and expects y/n on stdin. Returns true for yes.
func Confirm(msg string) bool {
	return ConfirmReader(msg, os.Stdin, os.Stdout)
}

// ConfirmReader prompts on w and reads the answer from r (useful for tests).
// Anything other than y or yes, including EOF, is a no.
func ConfirmReader(msg string, r io.Reader, w io.Writer) bool {
	_, _ = fmt.Fprintf(w, "%s [y/N]: ", msg)
	br := bufio.NewReader(r)
	line, _ := br.ReadString('\n')
	resp := strings.TrimSpace(strings.ToLower(line))
	return resp == "y" || resp == "yes"
}
