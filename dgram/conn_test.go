package dgram_test

import (
	"errors"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/aethiopicuschan/stund/dgram"
)

type fakeRead struct {
	payload []byte
	flags   int
	err     error
}

// fakeConn replays scripted reads and write results.
type fakeConn struct {
	reads     []fakeRead
	writeErrs []error
	writes    [][]byte
	peers     []*net.UDPAddr
	short     int
}

func (f *fakeConn) ReadMsgUDP(b, oob []byte) (int, int, int, *net.UDPAddr, error) {
	if len(f.reads) == 0 {
		return 0, 0, 0, nil, net.ErrClosed
	}
	r := f.reads[0]
	f.reads = f.reads[1:]
	if r.err != nil {
		return 0, 0, 0, nil, r.err
	}
	n := copy(b, r.payload)
	return n, 0, r.flags, &net.UDPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 5000}, nil
}

func (f *fakeConn) WriteMsgUDP(b, oob []byte, addr *net.UDPAddr) (int, int, error) {
	if len(f.writeErrs) > 0 {
		err := f.writeErrs[0]
		f.writeErrs = f.writeErrs[1:]
		if err != nil {
			return 0, 0, err
		}
	}
	f.writes = append(f.writes, append([]byte{}, b...))
	f.peers = append(f.peers, addr)
	return len(b) - f.short, 0, nil
}

func (f *fakeConn) LocalAddr() net.Addr { return &net.UDPAddr{IP: net.IPv4zero, Port: 3478} }

func (f *fakeConn) Close() error { return nil }

// fakeQueue returns scripted drain results, then QueueEmpty.
type fakeQueue struct {
	results []dgram.DrainResult
	calls   int
}

func (q *fakeQueue) Drain() (dgram.DrainResult, error) {
	q.calls++
	if len(q.results) == 0 {
		return dgram.QueueEmpty, nil
	}
	r := q.results[0]
	q.results = q.results[1:]
	if r == dgram.DrainedEntry {
		return r, syscall.ECONNREFUSED
	}
	return r, nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFakeConn(pc *fakeConn, q dgram.ErrorQueue) *dgram.Conn {
	return dgram.TestNewConn(pc, q, dgram.FamilyIPv4, dgram.ConnOptions{
		MaxMessageSize: 16,
		Logger:         quietLogger(),
	})
}

func reply() *dgram.Datagram {
	return &dgram.Datagram{
		Peer:    &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 40000},
		Payload: []byte("pong"),
	}
}

func TestConn_Send(t *testing.T) {
	t.Parallel()

	refused := syscall.ECONNREFUSED

	tests := []struct {
		name       string
		writeErrs  []error
		drains     []dgram.DrainResult
		queue      bool
		wantErr    bool
		wantWrites int
		wantDrains int
	}{
		{
			name:       "first attempt succeeds",
			queue:      true,
			wantWrites: 1,
		},
		{
			name:       "stale errors are drained and the send retried",
			writeErrs:  []error{refused, refused},
			drains:     []dgram.DrainResult{dgram.DrainedEntry, dgram.DrainedEntry},
			queue:      true,
			wantWrites: 1,
			wantDrains: 2,
		},
		{
			name:       "genuine failure once the queue is empty",
			writeErrs:  []error{refused, refused, refused},
			drains:     []dgram.DrainResult{dgram.DrainedEntry},
			queue:      true,
			wantErr:    true,
			wantDrains: 2,
		},
		{
			name:      "no queue means a single attempt",
			writeErrs: []error{refused},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pc := &fakeConn{writeErrs: tt.writeErrs}
			var queue dgram.ErrorQueue = dgram.NoErrorQueue
			fq := &fakeQueue{results: tt.drains}
			if tt.queue {
				queue = fq
			}
			c := newFakeConn(pc, queue)

			n, err := c.Send(reply())

			if tt.wantErr {
				assert.ErrorIs(t, err, dgram.ErrSend)
				assert.ErrorIs(t, err, refused)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, 4, n)
			}
			assert.Len(t, pc.writes, tt.wantWrites)
			assert.Equal(t, tt.wantDrains, fq.calls)
			assert.Equal(t, tt.queue, c.ErrorQueueAvailable())
		})
	}
}

func TestConn_Send_ToPeer(t *testing.T) {
	t.Parallel()

	pc := &fakeConn{}
	c := newFakeConn(pc, dgram.NoErrorQueue)

	_, err := c.Send(reply())
	require.NoError(t, err)

	require.Len(t, pc.peers, 1)
	assert.Equal(t, "203.0.113.5:40000", pc.peers[0].String())
	assert.Equal(t, []byte("pong"), pc.writes[0])
}

func TestConn_Receive(t *testing.T) {
	t.Parallel()

	t.Run("payload within bounds", func(t *testing.T) {
		t.Parallel()

		c := newFakeConn(&fakeConn{reads: []fakeRead{{payload: []byte("ping")}}}, dgram.NoErrorQueue)

		d, err := c.Receive()
		require.NoError(t, err)
		assert.Equal(t, []byte("ping"), d.Payload)
		assert.Equal(t, "192.0.2.1:5000", d.Peer.String())
		assert.Len(t, d.Buffer(), 16)
		assert.Nil(t, d.Local)
	})

	t.Run("truncated datagram is discarded", func(t *testing.T) {
		t.Parallel()

		c := newFakeConn(&fakeConn{reads: []fakeRead{{payload: make([]byte, 17), flags: unix.MSG_TRUNC}}}, dgram.NoErrorQueue)

		d, err := c.Receive()
		assert.Nil(t, d)
		assert.ErrorIs(t, err, dgram.ErrOversized)
	})

	t.Run("failure drains the queue once", func(t *testing.T) {
		t.Parallel()

		q := &fakeQueue{results: []dgram.DrainResult{dgram.DrainedEntry}}
		c := newFakeConn(&fakeConn{reads: []fakeRead{{err: syscall.ECONNREFUSED}}}, q)

		_, err := c.Receive()
		assert.ErrorIs(t, err, dgram.ErrReceive)
		assert.ErrorIs(t, err, syscall.ECONNREFUSED)
		assert.Equal(t, 1, q.calls)
	})

	t.Run("closed socket skips the drain", func(t *testing.T) {
		t.Parallel()

		q := &fakeQueue{}
		c := newFakeConn(&fakeConn{}, q)

		_, err := c.Receive()
		assert.True(t, errors.Is(err, net.ErrClosed))
		assert.Equal(t, 0, q.calls)
	})
}

func TestDatagram_Reply(t *testing.T) {
	t.Parallel()

	in := &dgram.Datagram{
		Peer:    &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 40000},
		Local:   net.IPv4(198, 51, 100, 1),
		IfIndex: 3,
		Payload: []byte("req"),
	}

	out := in.Reply([]byte("resp"))

	assert.Same(t, in.Peer, out.Peer)
	assert.True(t, in.Local.Equal(out.Local))
	assert.Equal(t, 3, out.IfIndex)
	assert.Equal(t, []byte("resp"), out.Payload)
}

func TestDrainResult_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "drained", dgram.DrainedEntry.String())
	assert.Equal(t, "empty", dgram.QueueEmpty.String())
	assert.Equal(t, "unavailable", dgram.QueueUnavailable.String())

	res, err := dgram.NoErrorQueue.Drain()
	assert.Equal(t, dgram.QueueUnavailable, res)
	assert.NoError(t, err)
}
