package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/event"
)

// ObjectUploader stores an object and returns where it can be fetched.
type ObjectUploader interface {
	Upload(ctx context.Context, objectPath, contentType string, body io.Reader) (string, error)
}

// HistoryEntry is the external shape of one stored event.
type HistoryEntry struct {
	Position   int64           `json:"position"`
	Version    int             `json:"version"`
	Type       event.Type      `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	RecordedAt time.Time       `json:"recorded_at"`
	Payload    json.RawMessage `json:"payload"`
}

func ToHistoryEntries(records []event.Record) ([]HistoryEntry, error) {
	out := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		payload, err := event.Encode(event.Redacted(r.Event))
		if err != nil {
			return nil, fmt.Errorf("encode event %d: %w", r.Version, err)
		}
		out = append(out, HistoryEntry{
			Position:   r.Position,
			Version:    r.Version,
			Type:       r.Type,
			OccurredAt: r.Event.OccurredAt(),
			RecordedAt: r.RecordedAt,
			Payload:    payload,
		})
	}
	return out, nil
}

// HistoryExporter writes an account's event history as JSON lines to object storage.
type HistoryExporter struct {
	Queries  *AccountQueries
	Uploader ObjectUploader
	Logger   *logrus.Logger
	Now      func() time.Time
}

func NewHistoryExporter(queries *AccountQueries, uploader ObjectUploader, logger *logrus.Logger) *HistoryExporter {
	return &HistoryExporter{Queries: queries, Uploader: uploader, Logger: logger, Now: time.Now}
}

func (h *HistoryExporter) Export(ctx context.Context, req *Requester, id string) (string, error) {
	if err := h.Queries.Authz.Authorize(req, ActionExport, id); err != nil {
		return "", err
	}
	records, err := h.Queries.History(ctx, req, id)
	if err != nil {
		return "", err
	}
	entries, err := ToHistoryEntries(records)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return "", err
		}
	}

	object := path.Join("exports", "accounts", id, h.Now().UTC().Format("20060102T150405Z")+".jsonl")
	url, err := h.Uploader.Upload(ctx, object, "application/x-ndjson", bytes.NewReader(buf.Bytes()))
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("account_id", id).Error("history export upload failed")
		}
		return "", fmt.Errorf("upload history: %w", err)
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"account_id": id, "object": object, "events": len(entries)}).Info("history exported")
	}
	return url, nil
}
