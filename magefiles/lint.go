//go:build mage

package main

import (
	"github.com/magefile/mage/sh"
)

// Lint vets the module.
func Lint() error {
	return sh.RunV(binGo, "vet", "./...")
}

// Fmt formats all Go sources in place.
func Fmt() error {
	return sh.RunV("gofmt", "-w", ".")
}
