// Package readings keeps a bounded in-memory journal of recent data
// samples and implements the fleet ReadingSource port over it.
package readings

import (
	"sync"

	"wristlink/go-fleet/pkg/models"
)

const defaultCapacity = 288 // one reading per 5 minutes for a day

// Journal is a bounded, newest-first sample log.
type Journal struct {
	mu       sync.Mutex
	capacity int
	samples  []models.Sample // oldest first
}

func NewJournal(capacity int) *Journal {
	if capacity < 1 {
		capacity = defaultCapacity
	}
	return &Journal{capacity: capacity}
}

// Append records a sample. The journal drops its oldest entries beyond
// capacity. Samples are expected in roughly chronological order; queries
// sort nothing and scan newest first.
func (j *Journal) Append(sample models.Sample) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.samples = append(j.samples, sample)
	if len(j.samples) > j.capacity {
		j.samples = append([]models.Sample(nil), j.samples[len(j.samples)-j.capacity:]...)
	}
}

// Latest returns matching samples, newest first.
func (j *Journal) Latest(q models.ReadingQuery) []models.Sample {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []models.Sample
	for i := len(j.samples) - 1; i >= 0; i-- {
		s := j.samples[i]
		if !q.Since.IsZero() && s.Timestamp.Before(q.Since) {
			continue
		}
		if q.Sensor != "" && s.Sensor != q.Sensor {
			continue
		}
		if q.ExcludeRaw && s.Raw {
			continue
		}
		if q.ExcludeCalculated && s.Calculated {
			continue
		}
		out = append(out, s)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// Len reports the number of retained samples.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.samples)
}
