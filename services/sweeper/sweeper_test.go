package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/attendance"
	"github.com/trezcool/senbet/tests"
)

type attendanceMock struct {
	attendance.Service
	expired int
	err     error
	ttls    []time.Duration
}

func (m *attendanceMock) ExpireIdleSessions(_ context.Context, ttl time.Duration) (int, error) {
	m.ttls = append(m.ttls, ttl)
	return m.expired, m.err
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()

	conf.Session.SweepSpec = "lol"
	_, err := New(new(attendanceMock), conf, new(testutil.MockLogger))
	assert.Error(t, err)

	for _, spec := range []string{"@every 10m", "*/5 * * * *", "@hourly"} {
		conf.Session.SweepSpec = spec
		s, err := New(new(attendanceMock), conf, new(testutil.MockLogger))
		assert.NoError(t, err, spec)
		assert.Len(t, s.cron.Entries(), 1)
	}
}

func TestSweeper_Sweep(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Session.IdleTTL = 30 * time.Minute

	tests := []struct {
		name      string
		svc       *attendanceMock
		wantLevel string
	}{
		{name: "nothing to expire", svc: &attendanceMock{}},
		{name: "expired", svc: &attendanceMock{expired: 2}, wantLevel: "INFO"},
		{name: "error", svc: &attendanceMock{err: errors.New("boom")}, wantLevel: "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := new(testutil.MockLogger)
			s, err := New(tt.svc, conf, logger)
			require.NoError(t, err)

			s.Sweep()

			assert.Equal(t, []time.Duration{30 * time.Minute}, tt.svc.ttls)
			entries := logger.Entries("")
			if tt.wantLevel == "" {
				assert.Empty(t, entries)
				return
			}
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)
		})
	}
}

func TestSweeper_StartStop(t *testing.T) {
	s, err := New(new(attendanceMock), core.NewTestConfig(), new(testutil.MockLogger))
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
