// Package sink implements harvest.Sink destinations for finished outcomes.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

// Content types of the two artifacts.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Disambiguator hands out the random component of artifact names.
type Disambiguator interface {
	Disambiguator() string
}

// Blob writes each outcome as a JSON record plus a plain email list under
// <prefix>/<project>/.
type Blob struct {
	store  harvest.BlobStore
	prefix string
	ids    Disambiguator
	logger *zap.Logger
}

// NewBlob builds a Blob sink.
func NewBlob(store harvest.BlobStore, prefix string, ids Disambiguator, logger *zap.Logger) *Blob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Blob{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		ids:    ids,
		logger: logger.Named("blob_sink"),
	}
}

// ArtifactNames returns the record and email list paths for an outcome.
func (b *Blob) ArtifactNames(outcome harvest.Outcome, jid string) (string, string) {
	base := fmt.Sprintf("%s_%s_%s", outcome.Project, outcome.Domain, jid)
	dir := path.Join(b.prefix, outcome.Project)
	return path.Join(dir, base+"_job.json"), path.Join(dir, base+"_emails.txt")
}

// Persist writes both artifacts.
func (b *Blob) Persist(ctx context.Context, outcome harvest.Outcome) error {
	record, err := json.MarshalIndent(outcome, "", "    ")
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	var emails bytes.Buffer
	for _, email := range outcome.Results.Emails {
		emails.WriteString(email)
		emails.WriteByte('\n')
	}

	jobPath, emailsPath := b.ArtifactNames(outcome, b.ids.Disambiguator())
	jobURI, err := b.store.PutObject(ctx, jobPath, ContentTypeJSON, bytes.NewReader(record))
	if err != nil {
		return fmt.Errorf("write %s: %w", jobPath, err)
	}
	emailsURI, err := b.store.PutObject(ctx, emailsPath, ContentTypeText, &emails)
	if err != nil {
		return fmt.Errorf("write %s: %w", emailsPath, err)
	}
	b.logger.Debug("artifacts written",
		zap.String("project", outcome.Project),
		zap.String("domain", outcome.Domain),
		zap.String("job_uri", jobURI),
		zap.String("emails_uri", emailsURI),
	)
	return nil
}
