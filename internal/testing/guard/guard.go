// Package guard flips the process into test mode when imported for side
// effects, so binaries started from tests skip background workers.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TALLYROOM_TEST_MODE") == "" {
			_ = os.Setenv("TALLYROOM_TEST_MODE", "1")
		}
	})
}
