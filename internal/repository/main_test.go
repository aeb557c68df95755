package repository

import (
	"os"
	"testing"

	"estatehub/internal/observability"
)

func TestMain(m *testing.M) {
	_ = os.Setenv("APP_ENV", "test")
	observability.Config.EnableRepoLogging = false
	os.Exit(m.Run())
}
