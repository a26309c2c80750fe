package frame

import (
	"log"
	"time"

	"github.com/loov/hrtime"
)

// Summary aggregates the frames seen since the last report.
type Summary struct {
	Frames    int
	Presented int
	Skipped   int
	Rebuilt   int
	Mean      time.Duration
	Max       time.Duration
	Elapsed   time.Duration
}

// FPS is the frame rate over the summary's wall-clock window.
func (s Summary) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// Stats times DrawFrame calls with a high resolution clock and logs a
// summary every interval. A nil *Stats records nothing.
type Stats struct {
	now      func() time.Duration
	interval time.Duration
	logger   *log.Logger

	windowStart time.Duration
	total       time.Duration
	cur         Summary
}

// NewStats returns a Stats that logs every interval. An interval of zero
// disables periodic logging; Flush still reports.
func NewStats(interval time.Duration, logger *log.Logger) *Stats {
	if logger == nil {
		logger = log.Default()
	}
	st := &Stats{
		now:      hrtime.Now,
		interval: interval,
		logger:   logger,
	}
	st.windowStart = st.now()
	return st
}

func (st *Stats) Begin() time.Duration {
	if st == nil {
		return 0
	}
	return st.now()
}

func (st *Stats) End(start time.Duration, result Result) {
	if st == nil {
		return
	}

	end := st.now()
	elapsed := end - start

	st.cur.Frames++
	switch result {
	case ResultPresented:
		st.cur.Presented++
	case ResultSkipped:
		st.cur.Skipped++
	case ResultRebuilt:
		st.cur.Rebuilt++
	}
	st.total += elapsed
	if elapsed > st.cur.Max {
		st.cur.Max = elapsed
	}

	if st.interval > 0 && end-st.windowStart >= st.interval {
		st.Flush()
	}
}

// Snapshot returns the summary so far without resetting it.
func (st *Stats) Snapshot() Summary {
	if st == nil {
		return Summary{}
	}
	summary := st.cur
	if summary.Frames > 0 {
		summary.Mean = st.total / time.Duration(summary.Frames)
	}
	summary.Elapsed = st.now() - st.windowStart
	return summary
}

// Flush logs the current summary and starts a new window. Empty windows are
// not logged.
func (st *Stats) Flush() Summary {
	if st == nil {
		return Summary{}
	}
	summary := st.Snapshot()
	if summary.Frames > 0 {
		st.logger.Printf("frame: %d frames (%d skipped, %d rebuilt), mean %v, max %v, %.1f fps",
			summary.Frames, summary.Skipped, summary.Rebuilt, summary.Mean, summary.Max, summary.FPS())
	}

	st.cur = Summary{}
	st.total = 0
	st.windowStart = st.now()
	return summary
}
