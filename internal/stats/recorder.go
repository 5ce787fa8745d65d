// Package stats collects statistics of one execution and formats the
// summary printed when ffexec exits.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/ffexec/internal/parser"
	"github.com/randomizedcoder/ffexec/internal/process"
)

// digestCompression keeps roughly 100 centroids per digest.
const digestCompression = 100

// Snapshot is a point-in-time copy of a Recorder.
type Snapshot struct {
	Elapsed time.Duration

	// Records counts finalized log records by severity.
	Records      map[process.Severity]int64
	TotalRecords int64

	// Time between consecutive log records.
	GapP50 time.Duration
	GapP95 time.Duration
	GapP99 time.Duration
	GapMax time.Duration

	// Progress is the latest progress update, nil if none arrived.
	Progress        *parser.ProgressUpdate
	ProgressUpdates int64

	// Processing speed distribution over all progress updates.
	SpeedP50 float64
	SpeedMin float64
	SpeedMax float64
}

// Recorder accumulates statistics of one execution. Its methods are
// safe to call from the reader goroutines.
type Recorder struct {
	now func() time.Time

	mu        sync.Mutex
	start     time.Time
	last      time.Time
	counts    map[process.Severity]int64
	total     int64
	gaps      *tdigest.TDigest
	gapCount  int64
	gapMax    time.Duration
	progress  *parser.ProgressUpdate
	updates   int64
	speeds    *tdigest.TDigest
	speedMin  float64
	speedMax  float64
	hasSpeeds bool
}

// NewRecorder creates a recorder whose clock starts now.
func NewRecorder() *Recorder {
	return newRecorder(time.Now)
}

func newRecorder(now func() time.Time) *Recorder {
	return &Recorder{
		now:    now,
		start:  now(),
		counts: make(map[process.Severity]int64),
		gaps:   tdigest.NewWithCompression(digestCompression),
		speeds: tdigest.NewWithCompression(digestCompression),
	}
}

// ObserveRecord counts a finalized log record and the time since the
// previous one. It has the signature of a parser.RecordHook.
func (r *Recorder) ObserveRecord(rec process.LogRecord) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.counts[rec.Severity]++
	r.total++
	if !r.last.IsZero() {
		gap := now.Sub(r.last)
		if gap < 0 {
			gap = 0
		}
		r.gaps.Add(float64(gap.Nanoseconds()), 1)
		r.gapCount++
		if gap > r.gapMax {
			r.gapMax = gap
		}
	}
	r.last = now
}

// ObserveProgress keeps the latest progress update and its speed.
func (r *Recorder) ObserveProgress(u parser.ProgressUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = &u
	r.updates++

	// FFmpeg prints N/A (parsed as 0) until the speed is known
	if u.Speed <= 0 {
		return
	}
	r.speeds.Add(u.Speed, 1)
	if !r.hasSpeeds || u.Speed < r.speedMin {
		r.speedMin = u.Speed
	}
	if !r.hasSpeeds || u.Speed > r.speedMax {
		r.speedMax = u.Speed
	}
	r.hasSpeeds = true
}

// Snapshot returns the current statistics.
func (r *Recorder) Snapshot() *Snapshot {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Snapshot{
		Elapsed:         now.Sub(r.start),
		Records:         make(map[process.Severity]int64, len(r.counts)),
		TotalRecords:    r.total,
		GapMax:          r.gapMax,
		ProgressUpdates: r.updates,
	}
	for sev, n := range r.counts {
		s.Records[sev] = n
	}
	if r.gapCount > 0 {
		s.GapP50 = time.Duration(r.gaps.Quantile(0.50))
		s.GapP95 = time.Duration(r.gaps.Quantile(0.95))
		s.GapP99 = time.Duration(r.gaps.Quantile(0.99))
	}
	if r.progress != nil {
		p := *r.progress
		s.Progress = &p
	}
	if r.hasSpeeds {
		s.SpeedP50 = r.speeds.Quantile(0.50)
		s.SpeedMin = r.speedMin
		s.SpeedMax = r.speedMax
	}
	return s
}
