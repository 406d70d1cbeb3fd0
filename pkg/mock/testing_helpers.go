package mock

import (
	"bytes"
	"log/slog"
	"testing"
)

// SetupLogger returns a JSON logger that stays quiet unless the test
// fails, in which case the buffered entries are replayed through t.Log.
func SetupLogger(t *testing.T) *slog.Logger {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	t.Cleanup(func() {
		if t.Failed() && buf.Len() > 0 {
			t.Logf("captured log output:\n%s", buf.String())
		}
	})

	return logger
}
