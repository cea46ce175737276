package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

// DatasetExtractor hands out the stations of an in-memory dataset in chunks.
type DatasetExtractor struct {
	dataset *domain.Dataset
	precip  *domain.Dataset
	mu      sync.Mutex
	next    int
}

// NewDatasetExtractor creates an extractor over d.
func NewDatasetExtractor(d *domain.Dataset) *DatasetExtractor {
	return &DatasetExtractor{dataset: d}
}

// WithPrecipitation pairs each extracted station with its series in p, when
// p has one.
func (e *DatasetExtractor) WithPrecipitation(p *domain.Dataset) *DatasetExtractor {
	e.precip = p
	return e
}

// ExtractBatch returns up to batchSize jobs. The final chunk is returned
// together with io.EOF.
func (e *DatasetExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]StationJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.dataset.Len()
	end := min(e.next+batchSize, n)
	jobs := make([]StationJob, 0, end-e.next)
	for i := e.next; i < end; i++ {
		job := StationJob{Index: i, Series: e.dataset.StationSeries(i)}
		if e.precip != nil {
			if j, err := e.precip.Index(job.Series.Station.ID); err == nil {
				p := e.precip.StationSeries(j)
				job.Precip = &p
			}
		}
		jobs = append(jobs, job)
	}
	e.next = end

	if e.next >= n {
		return jobs, io.EOF
	}
	return jobs, nil
}
