// Package guard forces test mode for any test binary that imports it,
// keeping test runs from ever starting the real service.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STOCKYARD_TEST_MODE") == "" {
			_ = os.Setenv("STOCKYARD_TEST_MODE", "1")
		}
	})
}
