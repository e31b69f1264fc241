package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

func (m *memStore) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, "")
}

func (m *memStore) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

type fakeExecutions struct {
	recs   []domain.ExecutionRecord
	purged []time.Time
}

func (f *fakeExecutions) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	f.purged = append(f.purged, before)
	return 0, nil
}

func (f *fakeExecutions) ListBefore(_ context.Context, before time.Time) ([]domain.ExecutionRecord, error) {
	var out []domain.ExecutionRecord
	for _, r := range f.recs {
		if r.CreatedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeAudit struct {
	entries []domain.AuditEntry
	logged  []string
	purged  int
}

func (f *fakeAudit) DeleteBefore(context.Context, time.Time) (int64, error) {
	f.purged++
	return int64(len(f.entries)), nil
}

func (f *fakeAudit) ListBefore(context.Context, time.Time) ([]domain.AuditEntry, error) {
	return f.entries, nil
}

func (f *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	f.logged = append(f.logged, event)
	return nil
}

func TestArchiveExecutionsWritesJSONL(t *testing.T) {
	cutoff := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	store := &memStore{objects: map[string][]byte{}}
	audit := &fakeAudit{}
	execs := &fakeExecutions{recs: []domain.ExecutionRecord{
		{ID: "a", CreatedAt: cutoff.Add(-48 * time.Hour), Result: domain.ExecutionResult{Outcome: domain.OutcomeLanded}},
		{ID: "b", CreatedAt: cutoff.Add(-time.Hour), Result: domain.ExecutionResult{Outcome: domain.OutcomeReverted}},
		{ID: "c", CreatedAt: cutoff.Add(time.Hour)},
	}}
	a := NewArchiver(store, execs, audit)

	n, err := a.ArchiveExecutions(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{"archive.executions"}, audit.logged)
	assert.Equal(t, []time.Time{cutoff}, execs.purged)

	body, ok := store.objects["archive/executions/2026-10-01.jsonl"]
	require.True(t, ok)
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var line struct {
			ID     string `json:"id"`
			Result struct {
				Outcome string `json:"outcome"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		ids = append(ids, line.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestArchiveDoesNotOverwrite(t *testing.T) {
	cutoff := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	store := &memStore{objects: map[string][]byte{
		"archive/audit/2026-10-01.jsonl": []byte("old\n"),
	}}
	audit := &fakeAudit{entries: []domain.AuditEntry{{ID: 1, Event: "kill_switch"}}}
	a := NewArchiver(store, &fakeExecutions{}, audit)

	n, err := a.ArchiveAudit(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, audit.purged)
	assert.Equal(t, []byte("old\n"), store.objects["archive/audit/2026-10-01.jsonl"])
	assert.Contains(t, store.objects, "archive/audit/2026-10-01-1.jsonl")
}

func TestArchiveNothingToDo(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	audit := &fakeAudit{}
	execs := &fakeExecutions{}
	a := NewArchiver(store, execs, audit)

	n, err := a.ArchiveExecutions(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, execs.purged)
	assert.Empty(t, store.objects)
	assert.Empty(t, audit.logged)
}

func TestWithScheme(t *testing.T) {
	assert.Equal(t, "https://minio:9000", withScheme("minio:9000", true))
	assert.Equal(t, "http://minio:9000", withScheme("minio:9000", false))
	assert.Equal(t, "https://s3.example.com", withScheme("https://s3.example.com", false))
}
