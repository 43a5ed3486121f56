//go:build !linux

package precompute

import "os"

func adviseSequential(*os.File, int64) {}
