package executor

import (
	"fmt"
	"sync"
)

// mockLogger is a mock implementation of logger.Logger for testing
type mockLogger struct {
	mu          sync.Mutex
	uploadCalls []uploadCall
	deleteCalls []string
	errorCalls  []errorCall
	debugCalls  []string
	infoCalls   []string
}

type uploadCall struct {
	localPath  string
	remotePath string
}

type errorCall struct {
	operation string
	path      string
	err       error
}

func (m *mockLogger) Upload(localPath, remotePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadCalls = append(m.uploadCalls, uploadCall{localPath, remotePath})
}

func (m *mockLogger) Delete(remotePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, remotePath)
}

func (m *mockLogger) Error(operation, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCalls = append(m.errorCalls, errorCall{operation, path, err})
}

func (m *mockLogger) Info(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoCalls = append(m.infoCalls, fmt.Sprintf(format, args...))
}

func (m *mockLogger) Debug(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugCalls = append(m.debugCalls, message)
}

// mockRecorder counts recorder events
type mockRecorder struct {
	mu       sync.Mutex
	uploads  int
	bytes    int64
	deletes  int
	failures map[string]int
	retries  map[string]int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{failures: map[string]int{}, retries: map[string]int{}}
}

func (m *mockRecorder) ObserveUpload(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	m.bytes += n
}

func (m *mockRecorder) ObserveDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
}

func (m *mockRecorder) ObserveFailure(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[action]++
}

func (m *mockRecorder) ObserveRetry(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[action]++
}
