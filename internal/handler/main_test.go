package handler

import (
	"os"
	"testing"

	"studynet-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}
