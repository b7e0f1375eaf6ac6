package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/turnclock/internal/dependencies/mocks"
)

type RunnerSuite struct {
	suite.Suite
	clock  *mocks.MockClock
	runner *Runner
	ctx    context.Context
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func (s *RunnerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.runner = NewRunner(s.clock)
	s.ctx = context.Background()
}

func (s *RunnerSuite) TearDownTest() {
	s.runner.Close()
}

// latest waits for the next snapshot on the updates channel
func (s *RunnerSuite) latest() Snapshot {
	s.T().Helper()
	select {
	case snap := <-s.runner.Updates():
		return snap
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for snapshot")
		return Snapshot{}
	}
}

// second advances the fake clock by one tick once the loop is waiting on it
func (s *RunnerSuite) second() Snapshot {
	s.T().Helper()
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()
	s.Require().NoError(s.clock.BlockUntilContext(ctx, 1))
	s.clock.Advance(TickInterval)
	return s.latest()
}

func (s *RunnerSuite) TestCountsDownBufferThenBank() {
	s.runner.Reseed("a#1", 20, 30)
	s.runner.SetAdvancing(true)
	s.latest()

	var snap Snapshot
	for i := 0; i < 20; i++ {
		snap = s.second()
	}
	s.Equal(0, snap.Buffer)
	s.Equal(30, snap.Current)

	for i := 0; i < 30; i++ {
		snap = s.second()
	}
	s.Equal(0, snap.Current)
	s.True(snap.Expired())
}

func (s *RunnerSuite) TestPauseFreezesAndResumes() {
	s.runner.Reseed("a#1", 20, 600)
	s.runner.SetAdvancing(true)
	s.latest()

	for i := 0; i < 5; i++ {
		s.second()
	}

	s.runner.SetAdvancing(false)
	s.False(s.runner.Running())
	s.clock.Advance(10 * TickInterval)
	snap := s.runner.Snapshot()
	s.Equal(15, snap.Buffer)
	s.Equal(600, snap.Current)

	// the paused snapshot carries the bank; the buffer is kept
	s.runner.Reseed("a#1", 20, 600)
	s.runner.SetAdvancing(true)
	s.latest()

	snap = s.second()
	s.Equal(14, snap.Buffer)
}

func (s *RunnerSuite) TestNewTurnRestartsSingleLoop() {
	s.runner.Reseed("a#1", 0, 100)
	s.runner.SetAdvancing(true)
	s.latest()
	s.second()

	for i := 2; i < 6; i++ {
		s.runner.Reseed("b#"+string(rune('0'+i)), 0, 50)
	}
	s.True(s.runner.Running())
	s.latest()

	// one second consumes exactly one second, so only one loop is ticking
	snap := s.second()
	s.Equal(49, snap.Current)
	s.Equal("b#5", snap.Key)
}

func (s *RunnerSuite) TestCloseStopsLoop() {
	s.runner.Reseed("a#1", 0, 100)
	s.runner.SetAdvancing(true)
	s.True(s.runner.Running())

	s.runner.Close()
	s.False(s.runner.Running())

	s.runner.SetAdvancing(true)
	s.False(s.runner.Running())
}
