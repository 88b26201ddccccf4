package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TRIALDESK_TEST_MODE") == "" {
			_ = os.Setenv("TRIALDESK_TEST_MODE", "1")
		}
	})
}
