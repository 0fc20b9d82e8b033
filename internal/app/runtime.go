package app

import (
	"os"
	"strconv"
	"strings"
)

// TestModeEnv makes the binaries exit before touching PostgreSQL or Redis.
// The testing package sets it for every test binary that imports it.
const TestModeEnv = "BANKCRM_TEST_MODE"

// InTestMode reports whether TestModeEnv holds a true value ("1", "true",
// "yes"). It is read on every call.
func InTestMode() bool {
	raw := strings.TrimSpace(os.Getenv(TestModeEnv))
	if strings.EqualFold(raw, "yes") {
		return true
	}
	on, err := strconv.ParseBool(raw)
	return err == nil && on
}
