//go:build !linux

package hasher

import "github.com/spf13/afero"

func adviseSequential(afero.File, Mode) {}
