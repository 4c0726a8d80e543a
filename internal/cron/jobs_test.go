package cron

import (
	"context"
	"errors"
	"testing"
)

type fakeExpirer struct {
	count int
	err   error
	calls int
}

func (f *fakeExpirer) ExpirePending(context.Context) (int, error) {
	f.calls++
	return f.count, f.err
}

type fakePruner struct {
	count int64
	err   error
	calls int
}

func (f *fakePruner) PruneExpired(context.Context) (int64, error) {
	f.calls++
	return f.count, f.err
}

func TestOrderTTLJob(t *testing.T) {
	expirer := &fakeExpirer{count: 3}
	job, err := NewOrderTTLJob(expirer, testLogger())
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "order-ttl" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.calls != 1 {
		t.Fatalf("expected one call, got %d", expirer.calls)
	}

	expirer.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestRetentionJobsPropagateErrors(t *testing.T) {
	pruner := &fakePruner{count: 9}
	auditJob, err := NewAuditRetentionJob(pruner, testLogger())
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := auditJob.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	trafficJob, err := NewTrafficRetentionJob(&fakePruner{err: errors.New("boom")}, testLogger())
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := trafficJob.Run(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestJobConstructorsRequireDependencies(t *testing.T) {
	if _, err := NewOrderTTLJob(nil, testLogger()); err == nil {
		t.Fatal("expected error for nil orders service")
	}
	if _, err := NewCMSPublishJob(nil, testLogger()); err == nil {
		t.Fatal("expected error for nil cms service")
	}
	if _, err := NewCampaignSendJob(nil, testLogger()); err == nil {
		t.Fatal("expected error for nil campaigns service")
	}
	if _, err := NewAuditRetentionJob(&fakePruner{}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
