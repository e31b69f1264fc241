package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// multipartThreshold switches uploads to the transfer manager.
const multipartThreshold = 16 * 1024 * 1024

// ExecutionSource lists and purges execution records older than a cutoff.
type ExecutionSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditSource lists and purges audit entries older than a cutoff.
type AuditSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	Log(ctx context.Context, event string, detail map[string]any) error
}

type purgeFunc func(ctx context.Context, before time.Time) (int64, error)

// ObjectStore is the subset of Writer the archiver needs.
type ObjectStore interface {
	domain.BlobWriter
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver implements domain.Archiver by exporting old rows as JSONL. Rows
// are purged from the primary store only after the upload and its audit
// entry succeed.
type Archiver struct {
	store      ObjectStore
	executions ExecutionSource
	audit      AuditSource
}

// NewArchiver creates an Archiver.
func NewArchiver(store ObjectStore, executions ExecutionSource, audit AuditSource) *Archiver {
	return &Archiver{store: store, executions: executions, audit: audit}
}

// archivedExecution flattens a record for the archive line format.
type archivedExecution struct {
	ID          string                  `json:"id"`
	CreatedAt   time.Time               `json:"created_at"`
	Opportunity domain.Opportunity      `json:"opportunity"`
	Simulation  domain.SimulationResult `json:"simulation"`
	Result      domain.ExecutionResult  `json:"result"`
}

// ArchiveExecutions exports executions created before the cutoff to
// archive/executions/YYYY-MM-DD.jsonl.
func (a *Archiver) ArchiveExecutions(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.executions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list executions: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	lines := make([]archivedExecution, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, archivedExecution{
			ID:          r.ID,
			CreatedAt:   r.CreatedAt,
			Opportunity: r.Opportunity,
			Simulation:  r.Simulation,
			Result:      r.Result,
		})
	}
	return export(ctx, a, "executions", before, lines, a.executions.DeleteBefore)
}

// ArchiveAudit exports audit entries created before the cutoff.
func (a *Archiver) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list audit: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return export(ctx, a, "audit", before, entries, a.audit.DeleteBefore)
}

func export[T any](ctx context.Context, a *Archiver, kind string, before time.Time, records []T, purge purgeFunc) (int64, error) {
	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: marshal %s: %w", kind, err)
	}
	path, err := a.freePath(ctx, kind, before)
	if err != nil {
		return 0, err
	}
	if len(buf) >= multipartThreshold {
		err = a.store.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.store.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: upload %s: %w", kind, err)
	}

	count := int64(len(records))
	if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
		"path":   path,
		"count":  count,
		"before": before.UTC().Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: audit %s archive: %w", kind, err)
	}
	if _, err := purge(ctx, before); err != nil {
		return count, fmt.Errorf("s3blob: purge %s: %w", kind, err)
	}
	return count, nil
}

// freePath returns the first unused key for the cutoff date. A second run
// on the same day gets a numeric suffix instead of overwriting.
func (a *Archiver) freePath(ctx context.Context, kind string, before time.Time) (string, error) {
	base := fmt.Sprintf("archive/%s/%s", kind, before.UTC().Format("2006-01-02"))
	path := base + ".jsonl"
	for i := 1; ; i++ {
		ok, err := a.store.Exists(ctx, path)
		if err != nil {
			return "", err
		}
		if !ok {
			return path, nil
		}
		path = fmt.Sprintf("%s-%d.jsonl", base, i)
	}
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
