package campaigns

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/mailer"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
)

func setupCampaignsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:campaigns_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, conn.Exec(`
CREATE TABLE IF NOT EXISTS campaigns (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  subject TEXT NOT NULL,
  body_html TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  scheduled_at DATETIME,
  sent_at DATETIME,
  recipient_count INTEGER NOT NULL DEFAULT 0,
  failure_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, conn.Exec(`
CREATE TABLE IF NOT EXISTS subscribers (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT,
  unsubscribed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	return conn
}

// fakeMailer records every message and can be told to fail for specific
// recipient addresses.
type fakeMailer struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failTo map[string]bool
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		return fmt.Errorf("smtp rejected %s", msg.To)
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}

type recordingOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type campaignsFixture struct {
	svc    *service
	conn   *gorm.DB
	mail   *fakeMailer
	outbox *recordingOutbox
}

func newCampaignsFixture(t *testing.T) *campaignsFixture {
	t.Helper()
	conn := setupCampaignsTestDB(t)
	mail := &fakeMailer{failTo: map[string]bool{}}
	ob := &recordingOutbox{}
	logg := logger.New(logger.Options{ServiceName: "campaigns-test", Output: io.Discard})
	svc, err := NewService(NewRepository(conn), db.FromConn(conn), mail, ob, logg)
	require.NoError(t, err)
	return &campaignsFixture{svc: svc.(*service), conn: conn, mail: mail, outbox: ob}
}

func (f *campaignsFixture) subscribe(t *testing.T, email string) {
	t.Helper()
	_, err := f.svc.Subscribe(context.Background(), SubscribeInput{Email: email})
	require.NoError(t, err)
}

func TestCampaignLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCampaignsFixture(t)

	draft, err := f.svc.CreateCampaign(ctx, CreateCampaignInput{
		Name:     "Winter Drop",
		Subject:  "New arrivals",
		BodyHTML: "<p>fresh knits</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CampaignStatusDraft.String(), draft.Status)

	subject := "New arrivals this week"
	updated, err := f.svc.UpdateCampaign(ctx, draft.ID, UpdateCampaignInput{Subject: &subject})
	require.NoError(t, err)
	assert.Equal(t, subject, updated.Subject)

	scheduled, err := f.svc.ScheduleCampaign(ctx, draft.ID, ScheduleCampaignInput{
		ScheduledAt: time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CampaignStatusScheduled.String(), scheduled.Status)
	require.NotNil(t, scheduled.ScheduledAt)

	// Scheduled campaigns can no longer be edited or rescheduled.
	_, err = f.svc.UpdateCampaign(ctx, draft.ID, UpdateCampaignInput{Subject: &subject})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	_, err = f.svc.ScheduleCampaign(ctx, draft.ID, ScheduleCampaignInput{
		ScheduledAt: time.Now().UTC().Add(time.Hour),
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestScheduleRejectsPastTime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCampaignsFixture(t)

	draft, err := f.svc.CreateCampaign(ctx, CreateCampaignInput{
		Name:     "Flash Sale",
		Subject:  "Today only",
		BodyHTML: "<p>hurry</p>",
	})
	require.NoError(t, err)

	_, err = f.svc.ScheduleCampaign(ctx, draft.ID, ScheduleCampaignInput{
		ScheduledAt: time.Now().UTC().Add(-time.Minute),
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCampaignsFixture(t)

	sub, err := f.svc.Subscribe(ctx, SubscribeInput{Email: "  Ana@Example.COM "})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", sub.Email)

	// Subscribing twice is a no-op, not a conflict.
	again, err := f.svc.Subscribe(ctx, SubscribeInput{Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)

	require.NoError(t, f.svc.Unsubscribe(ctx, "ana@example.com"))
	active, err := f.svc.ListSubscribers(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Repeat unsubscribe stays idempotent.
	require.NoError(t, f.svc.Unsubscribe(ctx, "ana@example.com"))

	// Resubscribing clears the opt-out on the same row.
	back, err := f.svc.Subscribe(ctx, SubscribeInput{Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, sub.ID, back.ID)
	assert.Nil(t, back.UnsubscribedAt)

	err = f.svc.Unsubscribe(ctx, "nobody@example.com")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestSendDueDeliversToActiveSubscribers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCampaignsFixture(t)

	f.subscribe(t, "a@example.com")
	f.subscribe(t, "b@example.com")
	f.subscribe(t, "gone@example.com")
	require.NoError(t, f.svc.Unsubscribe(ctx, "gone@example.com"))

	draft, err := f.svc.CreateCampaign(ctx, CreateCampaignInput{
		Name:     "Lookbook",
		Subject:  "Spring lookbook",
		BodyHTML: "<p>styles</p>",
	})
	require.NoError(t, err)
	_, err = f.svc.ScheduleCampaign(ctx, draft.ID, ScheduleCampaignInput{
		ScheduledAt: time.Now().UTC().Add(time.Minute),
	})
	require.NoError(t, err)

	// Not due yet.
	count, err := f.svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.mail.messages())

	f.svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	count, err = f.svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	msgs := f.mail.messages()
	require.Len(t, msgs, 2)
	recipients := []string{msgs[0].To, msgs[1].To}
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, recipients)
	assert.Equal(t, "Spring lookbook", msgs[0].Subject)

	got, err := f.svc.GetCampaign(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CampaignStatusSent.String(), got.Status)
	assert.Equal(t, 2, got.RecipientCount)
	assert.Zero(t, got.FailureCount)
	require.NotNil(t, got.SentAt)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, outbox.EventCampaignSent, f.outbox.events[0].EventType)
	assert.Equal(t, draft.ID, f.outbox.events[0].AggregateID)

	// A second run finds nothing due.
	count, err = f.svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, f.mail.messages(), 2)
}

func TestSendDueCountsFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCampaignsFixture(t)

	f.subscribe(t, "ok@example.com")
	f.subscribe(t, "bounce@example.com")
	f.mail.failTo["bounce@example.com"] = true

	draft, err := f.svc.CreateCampaign(ctx, CreateCampaignInput{
		Name:     "Clearance",
		Subject:  "Last chance",
		BodyHTML: "<p>final stock</p>",
	})
	require.NoError(t, err)
	_, err = f.svc.ScheduleCampaign(ctx, draft.ID, ScheduleCampaignInput{
		ScheduledAt: time.Now().UTC().Add(time.Minute),
	})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	count, err := f.svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := f.svc.GetCampaign(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CampaignStatusSent.String(), got.Status)
	assert.Equal(t, 1, got.RecipientCount)
	assert.Equal(t, 1, got.FailureCount)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "bounce@example.com")
}

func TestDeleteCampaign(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCampaignsFixture(t)

	draft, err := f.svc.CreateCampaign(ctx, CreateCampaignInput{
		Name:     "Scrapped",
		Subject:  "never mind",
		BodyHTML: "<p>n/a</p>",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteCampaign(ctx, draft.ID))
	_, err = f.svc.GetCampaign(ctx, draft.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
