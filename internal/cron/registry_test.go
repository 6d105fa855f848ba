package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	outbox := &stubJob{name: "outbox-retention"}
	drafts := &stubJob{name: "stale-draft-cleanup"}
	registry, err := NewRegistry(outbox, nil, drafts)
	require.NoError(t, err)

	jobs := registry.Jobs()
	require.Equal(t, []Job{outbox, drafts}, jobs)

	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "outbox-retention"})
	require.NoError(t, err)
	require.Error(t, registry.Register(&stubJob{name: "outbox-retention"}))
	require.Len(t, registry.Jobs(), 1)

	_, err = NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"})
	require.Error(t, err)
}

func TestZeroRegistryAcceptsJobs(t *testing.T) {
	var registry Registry
	require.NoError(t, registry.Register(&stubJob{name: "a"}))
	require.Len(t, registry.Jobs(), 1)
}
