package s3blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// multipartThreshold is the body size above which uploads switch to the
// multipart manager. Event logs from long collection sessions exceed this.
const multipartThreshold int64 = 8 * 1024 * 1024

// Archiver implements domain.Blob over the S3 client and adds the key
// layout used for event logs and run reports.
type Archiver struct {
	client *Client
}

var _ domain.Blob = (*Archiver)(nil)

// NewArchiver creates an Archiver over the given client.
func NewArchiver(c *Client) *Archiver {
	return &Archiver{client: c}
}

// Put uploads one object and returns its key.
func (a *Archiver) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := a.client.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.client.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: put object %s: %w", key, err)
	}
	return key, nil
}

// PutLarge uploads via the multipart manager, splitting the body into parts
// and uploading them concurrently.
func (a *Archiver) PutLarge(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	uploader := manager.NewUploader(a.client.s3, func(u *manager.Uploader) {
		u.PartSize = multipartThreshold
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.client.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
	}
	return key, nil
}

// Get downloads one object. The caller closes the returned body.
func (a *Archiver) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := a.client.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.client.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3blob: get object %s: %w", key, err)
	}
	return out.Body, nil
}

// EventLogKey builds the archive key for a collected event log.
func EventLogKey(runID string, collectedAt time.Time) string {
	return fmt.Sprintf("event-logs/%s/%s.json",
		collectedAt.UTC().Format("2006/01/02"), runID)
}

// ReportKey builds the archive key for a run's final text report.
func ReportKey(runID string) string {
	return fmt.Sprintf("reports/%s.txt", runID)
}

// ArchiveReport uploads a rendered run report.
func (a *Archiver) ArchiveReport(ctx context.Context, runID, report string) (string, error) {
	return a.Put(ctx, ReportKey(runID), strings.NewReader(report), "text/plain; charset=utf-8")
}
