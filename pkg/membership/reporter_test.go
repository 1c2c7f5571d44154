package membership

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestReporterRunExitsOnCancellation(t *testing.T) {
	sm := newTestStateMachine()
	r := NewReporter(testIdentity(), sm, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := r.Run(ctx)
	assert.NoError(t, err)
}

func TestReporterReportDoesNotPanicWithNoLeader(t *testing.T) {
	sm := newTestStateMachine()
	r := NewReporter(testIdentity(), sm, time.Second, zerolog.Nop())
	assert.NotPanics(t, r.report)
}
