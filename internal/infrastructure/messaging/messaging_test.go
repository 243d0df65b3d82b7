package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/account-service/internal/domain/event"
	"github.com/oksasatya/account-service/pkg/mailer"
	mailtpl "github.com/oksasatya/account-service/pkg/mailer/templates"
)

type published struct {
	key  string
	body []byte
}

type fakePublisher struct {
	events []published
	jobs   [][]byte
	err    error
}

func (f *fakePublisher) PublishEvent(_ context.Context, key string, body any) error {
	if f.err != nil {
		return f.err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	f.events = append(f.events, published{key: key, body: b})
	return nil
}

func (f *fakePublisher) PublishJSON(_ context.Context, body any) error {
	if f.err != nil {
		return f.err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	f.jobs = append(f.jobs, b)
	return nil
}

func TestIntegrationEventsPublishesRedactedEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	h := NewIntegrationEvents(pub)
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	rec := event.Record{
		Position:    7,
		AggregateID: "acc-1",
		Version:     1,
		Type:        event.TypeAccountCreated,
		Event:       event.NewAccountCreated("acc-1", "Ann", "ann@x.io", "bcrypt-hash", []string{"ROLE_USER"}, nil, at),
		RecordedAt:  at.Add(time.Second),
	}

	require.NoError(t, h.Handle(context.Background(), rec))
	require.Len(t, pub.events, 1)
	assert.Equal(t, "account.AccountCreated", pub.events[0].key)

	var msg IntegrationMessage
	require.NoError(t, json.Unmarshal(pub.events[0].body, &msg))
	assert.Equal(t, "acc-1:1", msg.ID)
	assert.Equal(t, at, msg.OccurredAt)
	assert.Contains(t, string(msg.Payload), "ann@x.io")
	assert.NotContains(t, string(msg.Payload), "bcrypt-hash")

	pub.err = errors.New("channel closed")
	assert.Error(t, h.Handle(context.Background(), rec))
}

func TestEmailNotifierQueuesPasswordResetJob(t *testing.T) {
	pub := &fakePublisher{}
	n := NewEmailNotifier(pub, "https://app.test/reset", time.Hour, true, nil)
	n.Now = func() time.Time { return time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, n.SendPasswordReset(context.Background(), "ann@x.io", "Ann", "tok"))
	require.Len(t, pub.jobs, 1)

	var job mailer.EmailJob
	require.NoError(t, json.Unmarshal(pub.jobs[0], &job))
	assert.Equal(t, "ann@x.io", job.To)
	assert.Equal(t, mailtpl.PasswordReset, job.Template)
	assert.Equal(t, "https://app.test/reset?token=tok", job.Data["ResetURL"])
	assert.Equal(t, "01 February 2024, 09:00 UTC", job.Data["ExpiresAtText"])
}

func TestEmailNotifierDisabled(t *testing.T) {
	pub := &fakePublisher{}
	n := NewEmailNotifier(pub, "https://app.test/reset", time.Hour, false, nil)

	require.NoError(t, n.SendPasswordReset(context.Background(), "ann@x.io", "Ann", "tok"))
	assert.Empty(t, pub.jobs)
}
