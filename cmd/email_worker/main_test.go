package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/oksasatya/account-service/pkg/mailer"
)

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

type stubSender struct {
	err     error
	subject string
}

func (s *stubSender) Send(_ context.Context, _, subject, _, _ string) error {
	s.subject = subject
	return s.err
}

func delivery(t *testing.T, body any, redelivered bool) (amqp.Delivery, *ackRecorder) {
	t.Helper()
	b, ok := body.([]byte)
	if !ok {
		var err error
		b, err = json.Marshal(body)
		assert.NoError(t, err)
	}
	ack := &ackRecorder{}
	return amqp.Delivery{Acknowledger: ack, Body: b, Redelivered: redelivered}, ack
}

func TestHandle(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	ctx := context.Background()
	job := mailer.EmailJob{To: "ann@x.io", Subject: "Hello", Text: "hi"}

	t.Run("delivered", func(t *testing.T) {
		s := &stubSender{}
		d, ack := delivery(t, job, false)
		handle(ctx, logger, s, d)
		assert.True(t, ack.acked)
		assert.Equal(t, "Hello", s.subject)
	})

	t.Run("malformed body dropped", func(t *testing.T) {
		d, ack := delivery(t, []byte("{"), false)
		handle(ctx, logger, &stubSender{}, d)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeue)
	})

	t.Run("bad job dropped", func(t *testing.T) {
		d, ack := delivery(t, mailer.EmailJob{Subject: "no recipient", Text: "x"}, false)
		handle(ctx, logger, &stubSender{}, d)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeue)
	})

	t.Run("transient failure requeued once", func(t *testing.T) {
		s := &stubSender{err: errors.New("mailgun 503")}
		d, ack := delivery(t, job, false)
		handle(ctx, logger, s, d)
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeue)

		d, ack = delivery(t, job, true)
		handle(ctx, logger, s, d)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeue)
	})
}
