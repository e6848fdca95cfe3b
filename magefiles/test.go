//go:build mage

package main

import (
	"github.com/magefile/mage/sh"
)

// Test runs the full test suite with race detection.
func Test() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover runs the test suite and writes a coverage profile.
func Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func=coverage.out")
}
