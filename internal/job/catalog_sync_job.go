package job

import (
	"context"

	"github.com/xxxsen/bingio/internal/catalog"
)

const CatalogSyncJobName = "catalog_sync"

type catalogIngester interface {
	IngestFile(ctx context.Context, path string, force bool) (*catalog.Report, error)
}

// CatalogSyncJob re-ingests the catalog file. Unchanged files are skipped by the ingester.
type CatalogSyncJob struct {
	ingester catalogIngester
	path     string
	onReport func(*catalog.Report)
}

func NewCatalogSyncJob(ingester catalogIngester, path string, onReport func(*catalog.Report)) *CatalogSyncJob {
	return &CatalogSyncJob{ingester: ingester, path: path, onReport: onReport}
}

func (j *CatalogSyncJob) Name() string {
	return CatalogSyncJobName
}

func (j *CatalogSyncJob) Run(ctx context.Context) error {
	if j.path == "" {
		return nil
	}
	report, err := j.ingester.IngestFile(ctx, j.path, false)
	if err != nil {
		return err
	}
	if j.onReport != nil && !report.Skipped {
		j.onReport(report)
	}
	return nil
}
