package ftp

import (
	"io"
	"time"

	"github.com/soloftp/soloftp/metrics"
)

// TransferChunk is the per-tick copy size: two full TCP segments, matching
// typical segment batching.
const TransferChunk = 2 * 1460

type transferKind int

const (
	transferDownload transferKind = iota // RETR: store -> data channel
	transferUpload                       // STOR: data channel -> store
)

// TransferJob is one in-flight RETR or STOR: the open file handle, byte
// bookkeeping, and the stall deadline. At most one job exists per session.
type TransferJob struct {
	kind transferKind
	name string

	src io.ReadCloser  // download source
	dst io.WriteCloser // upload destination

	bytes    int64
	started  time.Time
	deadline time.Time // refreshed on progress; expiry aborts the job
}

func (j *TransferJob) closeFile() {
	if j.src != nil {
		j.src.Close()
		j.src = nil
	}
	if j.dst != nil {
		j.dst.Close()
		j.dst = nil
	}
}

// StepResult is the outcome of one engine tick.
type StepResult int

const (
	// StepContinue: the job is still running.
	StepContinue StepResult = iota
	// StepDone: the natural end condition was reached.
	StepDone
	// StepFailed: the job broke and must be surfaced as an abort. The
	// engine never reports partial success as success.
	StepFailed
)

// TransferEngine drives the chunked copy between the data channel and the
// file store, one chunk per scheduler tick.
type TransferEngine struct {
	buf     [TransferChunk]byte
	stall   time.Duration
	metrics *metrics.ServerMetrics
}

func newTransferEngine(stall time.Duration, m *metrics.ServerMetrics) *TransferEngine {
	return &TransferEngine{stall: stall, metrics: m}
}

// Begin stamps the job's counters and arms its stall deadline.
func (e *TransferEngine) Begin(job *TransferJob) {
	now := time.Now()
	job.started = now
	job.deadline = now.Add(e.stall)
}

// StepRetrieve moves one chunk from the file to the data channel. A zero
// read is end-of-file and completes the job.
func (e *TransferEngine) StepRetrieve(job *TransferJob, data *DataChannel) StepResult {
	conn := data.Conn()
	if conn == nil {
		return StepFailed
	}
	n, err := job.src.Read(e.buf[:])
	if n > 0 {
		if _, werr := conn.Write(e.buf[:n]); werr != nil {
			return StepFailed
		}
		job.bytes += int64(n)
		job.deadline = time.Now().Add(e.stall)
		e.metrics.BytesTransferred("download", n)
		return StepContinue
	}
	if err == nil || err == io.EOF {
		return StepDone
	}
	return StepFailed
}

// StepStore moves available bytes from the data channel to the file. It
// never blocks waiting for the sender: no pending bytes just means another
// tick. The job only ends when the peer closes the connection; that is a
// store's natural end, unlike a retrieve's zero read.
func (e *TransferEngine) StepStore(job *TransferJob, data *DataChannel) StepResult {
	conn := data.Conn()
	if conn == nil {
		return StepFailed
	}
	n, err := conn.ReadAvailable(e.buf[:])
	if n > 0 {
		if _, werr := job.dst.Write(e.buf[:n]); werr != nil {
			return StepFailed
		}
		job.bytes += int64(n)
		job.deadline = time.Now().Add(e.stall)
		e.metrics.BytesTransferred("upload", n)
	}
	if err != nil {
		if err == io.EOF {
			return StepDone
		}
		return StepFailed
	}
	return StepContinue
}
