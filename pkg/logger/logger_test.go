package logger

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestNamedLoggerRouting(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	defer SetOutput(nil, nil)

	log := Named("queue")
	log.Info("started %d workers", 2)
	log.Error("job %s failed", "m1")

	assert.Contains(t, out.String(), "[INFO] [queue] started 2 workers")
	assert.Contains(t, errOut.String(), "[ERR] [queue] job m1 failed")
	assert.NotContains(t, out.String(), "failed")
}

func TestQuietSuppressesInfoOnly(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	SetQuiet(true)
	defer func() {
		SetQuiet(false)
		SetOutput(nil, nil)
	}()

	LogInfo("hidden")
	LogWarn("kept")
	LogError("kept too")
	Named("hub").Warn("slow subscriber")
	Named("hub").Success("hidden as well")
	LogAccess("GET /api/health 200")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[WARN] kept")
	assert.Contains(t, out.String(), "[WARN] [hub] slow subscriber")
	assert.NotContains(t, out.String(), "hidden as well")
	assert.NotContains(t, out.String(), "/api/health")
	assert.Contains(t, errOut.String(), "[ERR] kept too")
}
