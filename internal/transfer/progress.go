package transfer

import "sync"

const percentScaleConstant = 100.0

// Progress is a snapshot of a running bulk transfer.
type Progress struct {
	Total      int
	Completed  int
	Failed     int
	BytesDone  int64
	BytesTotal int64
	// Current is the path whose outcome produced this snapshot.
	Current string
}

// Percent returns the share of processed files; an empty transfer is complete.
func (progress Progress) Percent() float64 {
	if progress.Total <= 0 {
		return percentScaleConstant
	}
	return float64(progress.Completed+progress.Failed) / float64(progress.Total) * percentScaleConstant
}

// ProgressReporter receives a snapshot after every processed file.
type ProgressReporter func(Progress)

type progressTracker struct {
	mutex    sync.Mutex
	progress Progress
	reporter ProgressReporter
}

func newProgressTracker(total int, totalBytes int64, reporter ProgressReporter) *progressTracker {
	return &progressTracker{
		progress: Progress{Total: total, BytesTotal: totalBytes},
		reporter: reporter,
	}
}

// advance records one outcome; reports are serialized so the reporter needs no locking.
func (tracker *progressTracker) advance(currentPath string, byteCount int64, succeeded bool) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	if succeeded {
		tracker.progress.Completed++
		tracker.progress.BytesDone += byteCount
	} else {
		tracker.progress.Failed++
	}
	tracker.progress.Current = currentPath

	if tracker.reporter != nil {
		tracker.reporter(tracker.progress)
	}
}
