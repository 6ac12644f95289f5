package bridge

import "golang.org/x/sys/windows"

// CommandLine composes the quoted command line for req.
func (r Request) CommandLine() string {
	return windows.ComposeCommandLine(append([]string{r.Path}, r.Args...))
}
