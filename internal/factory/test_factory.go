package factory

import (
	"time"

	"github.com/mcoot/turnclock/internal/dependencies/mocks"
	"github.com/mcoot/turnclock/internal/services/auth"
	"github.com/mcoot/turnclock/internal/storage/memory"
	"github.com/mcoot/turnclock/internal/testutil"
	"github.com/mcoot/turnclock/internal/web/ws"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock     *mocks.MockClock
	MockRandom    *mocks.MockRandom
	MockPublisher *mocks.MockPublisher
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewWithClock(mockClock)
	mockRandom := mocks.NewMockRandom()
	mockPublisher := mocks.NewMockPublisher()

	app := newWithDependencies(store, mockPublisher, mockClock, mockRandom, auth.DefaultConfig(), ws.DefaultConfig(), testutil.NopLogger())

	return &TestApp{
		App:           app,
		MockClock:     mockClock,
		MockRandom:    mockRandom,
		MockPublisher: mockPublisher,
	}
}
