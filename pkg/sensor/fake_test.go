package sensor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ppanyukov/sensorgen/pkg/publish"
)

type message struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu         sync.Mutex
	connectErr error
	publishErr error
	connects   int
	closed     bool
	published  []message
}

func (p *fakePublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connects++
	return p.connectErr
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, message{topic: topic, payload: payload})
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) messages() []message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]message(nil), p.published...)
}

var _ publish.Publisher = (*fakePublisher)(nil)

var errBroker = errors.New("broker unavailable")

// fakeClock advances only when slept on. Not for use by more than one runner.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) bool {
	c.t = c.t.Add(d)
	return ctx.Err() == nil
}

type recorded struct {
	mu      sync.Mutex
	records map[string][]map[string]interface{}
}

func (r *recorded) hook(sensor string, _ time.Time, record map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records == nil {
		r.records = map[string][]map[string]interface{}{}
	}
	r.records[sensor] = append(r.records[sensor], record)
}

func (r *recorded) of(sensor string) []map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[sensor]
}
