//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Cooks the assets under assets/ into cooked/.
func (Run) Import() error {
	fmt.Println("Run importer...")
	if _, err := executeCmd("go", withArgs("run", "./cmd/oxygen-import", "--source", "assets", "--cooked-root", "cooked"), withStream()); err != nil {
		return err
	}
	return nil
}
