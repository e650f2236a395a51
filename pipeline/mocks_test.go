package pipeline

import (
	"fmt"

	"github.com/stretchr/testify/mock"
)

// MockLogger records each log call as a single formatted message.
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(args ...interface{}) { m.Called(fmt.Sprint(args...)) }
func (m *MockLogger) Info(args ...interface{})  { m.Called(fmt.Sprint(args...)) }
func (m *MockLogger) Warn(args ...interface{})  { m.Called(fmt.Sprint(args...)) }
func (m *MockLogger) Error(args ...interface{}) { m.Called(fmt.Sprint(args...)) }
