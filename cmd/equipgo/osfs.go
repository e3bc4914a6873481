package main

import "os"

// osFileReader reads files from the real filesystem, implementing
// modexpand.FileReader for the CLI (tests elsewhere use an in-memory
// double instead).
type osFileReader struct{}

func (osFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
