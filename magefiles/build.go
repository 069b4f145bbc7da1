//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the import tool into bin/.
func (Build) Importer() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/oxygen-import", "./cmd/oxygen-import"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs go vet over the whole module.
func (Build) Vet() error {
	if _, err := executeCmd("go", withArgs("vet", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the full test suite with the race detector.
func (Build) Test() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
