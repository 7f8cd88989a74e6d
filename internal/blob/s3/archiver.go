package s3blob

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pulsedelta/backend/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// EventSource pages through events older than a cutoff.
type EventSource interface {
	ListBefore(ctx context.Context, before time.Time, afterID int64, limit int) ([]domain.MarketEvent, error)
}

// EventArchiver implements domain.Archiver. It streams every market event
// older than the cutoff into one JSONL object per cutoff day. Archived rows
// are left in the database.
type EventArchiver struct {
	writer    domain.BlobWriter
	checker   domain.BlobChecker
	events    EventSource
	batchSize int
	partSize  int64
}

var _ domain.Archiver = (*EventArchiver)(nil)

// ArchiverOption configures an EventArchiver.
type ArchiverOption func(*EventArchiver)

// WithChecker skips runs whose target object already exists.
func WithChecker(c domain.BlobChecker) ArchiverOption {
	return func(a *EventArchiver) { a.checker = c }
}

// WithBatchSize sets how many events are read per query.
func WithBatchSize(n int) ArchiverOption {
	return func(a *EventArchiver) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// NewEventArchiver creates an EventArchiver.
func NewEventArchiver(writer domain.BlobWriter, events EventSource, opts ...ArchiverOption) *EventArchiver {
	a := &EventArchiver{
		writer:    writer,
		events:    events,
		batchSize: 1000,
		partSize:  minPartSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchivePath returns the object key of the archive for a cutoff.
func ArchivePath(before time.Time) string {
	return fmt.Sprintf("archive/market_events/%s.jsonl", before.UTC().Format("2006-01-02"))
}

// ArchiveEvents writes every event older than before to ArchivePath(before).
// Nothing is uploaded when there are no such events.
func (a *EventArchiver) ArchiveEvents(ctx context.Context, before time.Time) (domain.ArchiveResult, error) {
	res := domain.ArchiveResult{Path: ArchivePath(before), Before: before}

	if a.checker != nil {
		exists, err := a.checker.Exists(ctx, res.Path)
		if err != nil {
			return res, fmt.Errorf("s3blob: archive events: %w", err)
		}
		if exists {
			res.Skipped = true
			return res, nil
		}
	}

	first, err := a.events.ListBefore(ctx, before, 0, a.batchSize)
	if err != nil {
		return res, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(first) == 0 {
		return res, nil
	}

	pr, pw := io.Pipe()
	counted := make(chan int64, 1)
	go func() {
		n, err := a.stream(ctx, pw, before, first)
		counted <- n
		_ = pw.CloseWithError(err)
	}()

	uploadErr := a.writer.PutMultipart(ctx, res.Path, pr, a.partSize)
	// Unblock the producer if the upload stopped reading early.
	_ = pr.CloseWithError(io.ErrClosedPipe)
	res.Count = <-counted
	if uploadErr != nil {
		return res, fmt.Errorf("s3blob: archive events upload: %w", uploadErr)
	}
	return res, nil
}

// stream encodes batch and every following page as JSON lines.
func (a *EventArchiver) stream(ctx context.Context, w io.Writer, before time.Time, batch []domain.MarketEvent) (int64, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	var n int64
	for len(batch) > 0 {
		for _, e := range batch {
			if err := enc.Encode(e); err != nil {
				return n, fmt.Errorf("encode event %d: %w", e.ID, err)
			}
			n++
		}
		if len(batch) < a.batchSize {
			break
		}
		var err error
		batch, err = a.events.ListBefore(ctx, before, batch[len(batch)-1].ID, a.batchSize)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}
