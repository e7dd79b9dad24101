// Package stream broadcasts campaign events as newline-delimited JSON
// to any connected TCP client, for external dashboards tailing a live
// campaign. The broadcaster drains every queued message before
// confirming flush, except on the force-stop (signal) path.
package stream

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/s22625/fuzzmon/internal/bus"
	"github.com/s22625/fuzzmon/internal/campaign"
)

const queueCapacity = 4096

// Logger is the minimal logging surface the broadcaster needs.
type Logger interface {
	Printf(format string, v ...interface{})
}

// wireEvent is the NDJSON encoding of a campaign event.
type wireEvent struct {
	Type     string             `json:"type"`
	Time     time.Time          `json:"time"`
	WorkerID int                `json:"worker_id,omitempty"`
	Worker   string             `json:"worker,omitempty"`
	Reason   string             `json:"reason,omitempty"`
	Coverage *campaign.Coverage `json:"coverage,omitempty"`
	Test     *wireTest          `json:"test,omitempty"`
	Note     string             `json:"note,omitempty"`
	Workers  int                `json:"workers,omitempty"`
}

type wireTest struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
	Value  int64  `json:"value,omitempty"`
}

// Broadcaster owns the listen socket, the connected clients and the
// outbound queue.
type Broadcaster struct {
	port   int
	logger Logger

	ln       net.Listener
	queue    chan []byte
	stopCh   chan struct{}
	stopOnce sync.Once
	flushed  chan struct{}

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// Start binds the port, begins accepting clients and registers a bus
// listener feeding the outbound queue. It must be called before workers
// begin so clients can observe the whole campaign.
func Start(b *bus.Bus, port, workers int, logger Logger) (*Broadcaster, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on stream port %d: %w", port, err)
	}

	br := &Broadcaster{
		port:    port,
		logger:  logger,
		ln:      ln,
		queue:   make(chan []byte, queueCapacity),
		stopCh:  make(chan struct{}),
		flushed: make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}

	br.enqueue(wireEvent{Type: "campaign_hello", Time: time.Now(), Workers: workers})

	b.Register("stream", func(ev campaign.Event) {
		br.enqueue(encode(ev))
	})

	go br.acceptLoop()
	go br.writeLoop()

	logger.Printf("stream server listening on %s", ln.Addr())
	return br, nil
}

// Addr returns the bound listen address.
func (br *Broadcaster) Addr() net.Addr { return br.ln.Addr() }

// Finish signals the broadcaster to stop. When wait is true it blocks
// until every queued message has been written out; the signal path
// passes false and skips the drain.
func (br *Broadcaster) Finish(wait bool) {
	br.stopOnce.Do(func() {
		close(br.stopCh)
		br.ln.Close()
	})
	if wait {
		<-br.flushed
	}
}

// Flushed returns the channel that closes once the queue has drained.
func (br *Broadcaster) Flushed() <-chan struct{} { return br.flushed }

// ClientCount returns the number of connected clients.
func (br *Broadcaster) ClientCount() int {
	br.mu.Lock()
	defer br.mu.Unlock()
	return len(br.conns)
}

func (br *Broadcaster) enqueue(ev wireEvent) {
	line, err := json.Marshal(ev)
	if err != nil {
		br.logger.Printf("failed to encode stream event: %v", err)
		return
	}
	line = append(line, '\n')

	select {
	case <-br.stopCh:
	case br.queue <- line:
	}
}

func (br *Broadcaster) acceptLoop() {
	for {
		conn, err := br.ln.Accept()
		if err != nil {
			select {
			case <-br.stopCh:
				return
			default:
				br.logger.Printf("stream accept error: %v", err)
				continue
			}
		}
		br.mu.Lock()
		br.conns[conn] = struct{}{}
		br.mu.Unlock()
	}
}

func (br *Broadcaster) writeLoop() {
	defer br.closeConns()
	for {
		select {
		case line := <-br.queue:
			br.fanOut(line)
		case <-br.stopCh:
			// Flush whatever is still queued, then confirm.
			for {
				select {
				case line := <-br.queue:
					br.fanOut(line)
				default:
					close(br.flushed)
					return
				}
			}
		}
	}
}

func (br *Broadcaster) fanOut(line []byte) {
	br.mu.Lock()
	defer br.mu.Unlock()
	for conn := range br.conns {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if _, err := conn.Write(line); err != nil {
			conn.Close()
			delete(br.conns, conn)
		}
	}
}

func (br *Broadcaster) closeConns() {
	br.mu.Lock()
	defer br.mu.Unlock()
	for conn := range br.conns {
		conn.Close()
	}
	br.conns = nil
}

func encode(ev campaign.Event) wireEvent {
	w := wireEvent{
		Type:     ev.Kind.String(),
		Time:     ev.Time,
		WorkerID: ev.WorkerID,
		Worker:   ev.Worker.String(),
		Coverage: ev.Coverage,
		Note:     ev.Note,
	}
	if ev.Stop != nil {
		w.Reason = ev.Stop.Label()
	}
	if ev.Test != nil {
		w.Test = &wireTest{Name: ev.Test.Name, Status: string(ev.Test.Status), Value: ev.Test.Value}
	}
	return w
}
