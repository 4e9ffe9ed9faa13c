package dgram

// DrainResult is the outcome of one ErrorQueue.Drain call.
type DrainResult int

const (
	// DrainedEntry means a deferred error was dequeued, so the failure
	// that triggered the drain may have been caused by it.
	DrainedEntry DrainResult = iota

	// QueueEmpty means no deferred error was pending.
	QueueEmpty

	// QueueUnavailable means the socket has no deferred error queue.
	QueueUnavailable
)

func (r DrainResult) String() string {
	switch r {
	case DrainedEntry:
		return "drained"
	case QueueEmpty:
		return "empty"
	default:
		return "unavailable"
	}
}

// ErrorQueue dequeues asynchronous errors that a connectionless socket
// reports for datagrams sent earlier, such as ICMP port unreachable.
type ErrorQueue interface {
	// Drain removes at most one entry without blocking. When an entry was
	// removed the returned error describes it.
	Drain() (DrainResult, error)
}

// NoErrorQueue is used where the platform has no deferred error queue
// or it was disabled. Every drain reports QueueUnavailable, which makes
// Conn.Send a single attempt.
var NoErrorQueue ErrorQueue = noErrorQueue{}

type noErrorQueue struct{}

func (noErrorQueue) Drain() (DrainResult, error) { return QueueUnavailable, nil }
