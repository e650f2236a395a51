package logger

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ByLCY/receipt/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLoggerSingleton() {
	loggerInstance = nil
	loggerErr = nil
	loggerOnce = sync.Once{}
}

func TestGetLoggerBeforeInit(t *testing.T) {
	resetLoggerSingleton()
	_, err := GetLogger()
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	resetLoggerSingleton()
	t.Cleanup(resetLoggerSingleton)

	settings := config.DefaultLoggerSettings()
	require.NoError(t, InitLogger(&settings))

	log, err := GetLogger()
	require.NoError(t, err)
	assert.IsType(t, &ConsoleLogger{}, log)
}

func TestInitLogger_File(t *testing.T) {
	resetLoggerSingleton()
	t.Cleanup(resetLoggerSingleton)

	path := filepath.Join(t.TempDir(), "receipt.log")
	settings := &config.LoggerSettings{
		LogLevel:   config.LogLevelInfo,
		LogType:    config.LogTypeFile,
		FilePath:   path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	}
	require.NoError(t, InitLogger(settings))

	log, err := GetLogger()
	require.NoError(t, err)
	log.Info("rendered receipt")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rendered receipt")
}

func TestInitLogger_InvalidSettings(t *testing.T) {
	resetLoggerSingleton()
	t.Cleanup(resetLoggerSingleton)

	err := InitLogger(&config.LoggerSettings{LogLevel: "loud", LogType: config.LogTypeConsole})
	assert.Error(t, err)
}
