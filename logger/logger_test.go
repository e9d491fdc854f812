package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestCustomFormatter_Format(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "unknown collation",
		Data:    logrus.Fields{"table": "db.t1", "code": 1273},
	}
	out, err := (&CustomFormatter{}).Format(entry)
	assert.NoError(t, err)
	line := string(out)
	assert.Contains(t, line, "[03:04:05 UTC 2024/01/02] [WARN]")
	assert.Contains(t, line, "unknown collation code=1273 table=db.t1\n")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, parseLogLevel("bogus"))
}

func TestInitLogger_ConsoleOnly(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{LogLevel: "debug"}))
	var buf bytes.Buffer
	Logger.SetOutput(&buf)
	WithFields(logrus.Fields{"stage": "keys"}).Debug("compiling")
	assert.Contains(t, buf.String(), "[DEBU]")
	assert.Contains(t, buf.String(), "stage=keys")
}
