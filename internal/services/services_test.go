package services

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"flownetwork-platform/internal/repository"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

const testCaseUUID = "0b6a1f4e-6d1c-4c53-9a43-8f3e7f2c4d10"

var testKey = repository.EnsembleKey{CaseUUID: testCaseUUID, Ensemble: "iter-0"}

const groupTreeCSV = `DATE,CHILD,PARENT,KEYWORD,VFP_TABLE
2020-01-01,FIELD,,GRUPTREE,
2020-01-01,OP_1,FIELD,WELSPECS,2
`

// summaryCSV has a mid-month sample so monthly resampling is observable
const summaryCSV = `DATE,FOPR,FGPR,FWPR,FWIR,FGIR,GPR:FIELD,WOPR:OP_1,WGPR:OP_1,WWPR:OP_1,WSTAT:OP_1,WTHP:OP_1,WBHP:OP_1,WMCTL:OP_1
2020-01-01,100,1000,10,0,0,150,100,1000,10,1,50,200,1
2020-01-15,120,1200,12,0,0,151,120,1200,12,1,51,201,1
2020-02-01,130,1300,13,0,0,152,130,1300,13,1,52,202,
2020-03-01,140,1400,14,0,0,153,140,1400,14,1,53,203,1
`

func newTestLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("services-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func newTestMetrics() *metrics.Collector {
	return metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// writeEnsemble lays out an ensemble export with the given realizations
func writeEnsemble(t *testing.T, realizations ...int) string {
	t.Helper()
	dir := t.TempDir()
	for _, real := range realizations {
		realDir := filepath.Join(dir, realizationDirPrefix+strconv.Itoa(real))
		writeFile(t, filepath.Join(realDir, GroupTreeFileName), groupTreeCSV)
		writeFile(t, filepath.Join(realDir, SummaryFileName), summaryCSV)
	}
	return dir
}
