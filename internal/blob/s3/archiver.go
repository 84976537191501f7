package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/collabkale/kaledao/internal/domain"
)

// Archiver moves settled predictions and aged audit entries out of the
// primary store: each run serializes the batch to JSONL, uploads it, and
// deletes the rows only after the upload succeeded. A failed upload leaves
// the primary store untouched.
// defaultMultipartThreshold is the payload size above which uploads switch
// from a single PutObject to the multipart path.
const defaultMultipartThreshold int64 = 8 * 1024 * 1024

type Archiver struct {
	writer domain.BlobWriter
	tx     domain.TxRunner
	logger *slog.Logger

	multipartThreshold int64
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, tx domain.TxRunner, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:             writer,
		tx:                 tx,
		logger:             logger.With("component", "archiver"),
		multipartThreshold: defaultMultipartThreshold,
	}
}

// upload sends the serialized batch, using a multipart upload once the
// payload is large enough to benefit from it.
func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	if int64(len(buf)) >= a.multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), a.multipartThreshold)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// ArchivePredictions uploads settled predictions resolved before the cutoff
// to archive/predictions/YYYY-MM.jsonl and deletes them. Open or
// undistributed predictions are never touched.
func (a *Archiver) ArchivePredictions(ctx context.Context, before time.Time, batch int) (int64, error) {
	var preds []domain.Prediction
	err := a.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		preds, err = st.Predictions.ListSettledBefore(ctx, before, batch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive predictions query: %w", err)
	}
	if len(preds) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(preds)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive predictions marshal: %w", err)
	}

	path := archivePath("predictions", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive predictions upload: %w", err)
	}

	var deleted int64
	err = a.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		deleted, err = st.Predictions.DeleteSettledBefore(ctx, before)
		if err != nil {
			return err
		}
		return st.Audit.Log(ctx, "archive.predictions", map[string]any{
			"path":   path,
			"count":  deleted,
			"before": before.Format(time.RFC3339),
		})
	})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive predictions delete: %w", err)
	}

	a.logger.InfoContext(ctx, "predictions archived",
		slog.String("path", path),
		slog.Int64("count", deleted),
	)
	return deleted, nil
}

// ArchiveAudit uploads audit entries created before the cutoff to
// archive/audit/YYYY-MM.jsonl and deletes them.
func (a *Archiver) ArchiveAudit(ctx context.Context, before time.Time, batch int) (int64, error) {
	var entries []domain.AuditEntry
	err := a.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		entries, err = st.Audit.List(ctx, domain.ListOpts{Until: &before, Limit: batch})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	var deleted int64
	err = a.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		deleted, err = st.Audit.DeleteBefore(ctx, before)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit delete: %w", err)
	}

	a.logger.InfoContext(ctx, "audit log archived",
		slog.String("path", path),
		slog.Int64("count", deleted),
	)
	return deleted, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
