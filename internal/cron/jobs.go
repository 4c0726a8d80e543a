package cron

import (
	"context"
	"fmt"

	"github.com/kzarre/kzarre-backend/pkg/logger"
)

// The worker jobs are thin adapters over the domain services: each service
// owns its batch operation and the job only reports the outcome.

type pendingExpirer interface {
	ExpirePending(ctx context.Context) (int, error)
}

type contentPublisher interface {
	PublishDue(ctx context.Context) (int, error)
}

type campaignSender interface {
	SendDue(ctx context.Context) (int, error)
}

type auditPruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

type trafficPruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// NewOrderTTLJob expires pending orders that outlived their payment window.
func NewOrderTTLJob(orders pendingExpirer, logg *logger.Logger) (Job, error) {
	if orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &orderTTLJob{orders: orders, logg: logg}, nil
}

type orderTTLJob struct {
	orders pendingExpirer
	logg   *logger.Logger
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	expired, err := j.orders.ExpirePending(ctx)
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", expired), "pending order expiry complete")
	return nil
}

// NewCMSPublishJob publishes scheduled content whose visibility time passed.
func NewCMSPublishJob(cms contentPublisher, logg *logger.Logger) (Job, error) {
	if cms == nil {
		return nil, fmt.Errorf("cms service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &cmsPublishJob{cms: cms, logg: logg}, nil
}

type cmsPublishJob struct {
	cms  contentPublisher
	logg *logger.Logger
}

func (j *cmsPublishJob) Name() string { return "cms-publish" }

func (j *cmsPublishJob) Run(ctx context.Context) error {
	published, err := j.cms.PublishDue(ctx)
	if err != nil {
		return fmt.Errorf("publish due content: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", published), "content publish complete")
	return nil
}

// NewCampaignSendJob delivers scheduled campaigns that are due.
func NewCampaignSendJob(campaigns campaignSender, logg *logger.Logger) (Job, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaigns service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &campaignSendJob{campaigns: campaigns, logg: logg}, nil
}

type campaignSendJob struct {
	campaigns campaignSender
	logg      *logger.Logger
}

func (j *campaignSendJob) Name() string { return "campaign-send" }

func (j *campaignSendJob) Run(ctx context.Context) error {
	sent, err := j.campaigns.SendDue(ctx)
	if err != nil {
		return fmt.Errorf("send due campaigns: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", sent), "campaign send complete")
	return nil
}

// NewAuditRetentionJob prunes audit log rows past the configured retention.
func NewAuditRetentionJob(audit auditPruner, logg *logger.Logger) (Job, error) {
	if audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &auditRetentionJob{audit: audit, logg: logg}, nil
}

type auditRetentionJob struct {
	audit auditPruner
	logg  *logger.Logger
}

func (j *auditRetentionJob) Name() string { return "audit-retention" }

func (j *auditRetentionJob) Run(ctx context.Context) error {
	pruned, err := j.audit.PruneExpired(ctx)
	if err != nil {
		return fmt.Errorf("prune audit logs: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", pruned), "audit retention complete")
	return nil
}

// NewTrafficRetentionJob prunes page views past the configured retention.
func NewTrafficRetentionJob(traffic trafficPruner, logg *logger.Logger) (Job, error) {
	if traffic == nil {
		return nil, fmt.Errorf("traffic service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &trafficRetentionJob{traffic: traffic, logg: logg}, nil
}

type trafficRetentionJob struct {
	traffic trafficPruner
	logg    *logger.Logger
}

func (j *trafficRetentionJob) Name() string { return "traffic-retention" }

func (j *trafficRetentionJob) Run(ctx context.Context) error {
	pruned, err := j.traffic.PruneExpired(ctx)
	if err != nil {
		return fmt.Errorf("prune traffic events: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", pruned), "traffic retention complete")
	return nil
}
