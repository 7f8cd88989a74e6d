package s3blob_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3blob "github.com/pulsedelta/backend/internal/blob/s3"
	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/store/memory"
)

type fakeWriter struct {
	objects map[string][]byte
	err     error
}

func (f *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	return f.PutMultipart(context.Background(), path, data, 0)
}

func (f *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[path] = b
	return nil
}

type existsChecker bool

func (e existsChecker) Exists(context.Context, string) (bool, error) { return bool(e), nil }

var cutoff = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func seeded(t *testing.T, n int) *memory.Store {
	t.Helper()
	s := memory.New()
	events := make([]domain.MarketEvent, 0, n+1)
	for i := 0; i < n; i++ {
		events = append(events, domain.MarketEvent{
			Type:      domain.EventSharesPurchased,
			MarketID:  "0x01",
			Trader:    "0xaa",
			Shares:    decimal.NewFromInt(1),
			Cost:      decimal.RequireFromString("0.5"),
			TxHash:    "0xtx",
			LogIndex:  i,
			Timestamp: cutoff.Add(-time.Duration(n-i) * time.Hour),
		})
	}
	events = append(events, domain.MarketEvent{
		Type:      domain.EventSharesSold,
		MarketID:  "0x01",
		Cost:      decimal.NewFromInt(1),
		Timestamp: cutoff.Add(time.Hour),
	})
	s.AddEvents(events...)
	return s
}

func TestEventArchiver_StreamsAllPages(t *testing.T) {
	store := seeded(t, 25)
	w := &fakeWriter{}
	a := s3blob.NewEventArchiver(w, store.Events(), s3blob.WithBatchSize(10))

	res, err := a.ArchiveEvents(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.Count)
	assert.Equal(t, "archive/market_events/2026-04-01.jsonl", res.Path)
	assert.False(t, res.Skipped)

	body := w.objects[res.Path]
	sc := bufio.NewScanner(bytes.NewReader(body))
	var lines int
	var lastID int64
	for sc.Scan() {
		var e domain.MarketEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		assert.True(t, e.Timestamp.Before(cutoff))
		assert.Greater(t, e.ID, lastID)
		lastID = e.ID
		lines++
	}
	assert.Equal(t, 25, lines)
}

func TestEventArchiver_NothingToArchive(t *testing.T) {
	w := &fakeWriter{}
	a := s3blob.NewEventArchiver(w, memory.New().Events())

	res, err := a.ArchiveEvents(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.Empty(t, w.objects)
}

func TestEventArchiver_SkipsExistingObject(t *testing.T) {
	w := &fakeWriter{}
	a := s3blob.NewEventArchiver(w, seeded(t, 3).Events(), s3blob.WithChecker(existsChecker(true)))

	res, err := a.ArchiveEvents(context.Background(), cutoff)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, w.objects)
}

func TestEventArchiver_UploadError(t *testing.T) {
	w := &fakeWriter{err: errors.New("bucket gone")}
	a := s3blob.NewEventArchiver(w, seeded(t, 3).Events())

	_, err := a.ArchiveEvents(context.Background(), cutoff)
	assert.ErrorContains(t, err, "bucket gone")
}
