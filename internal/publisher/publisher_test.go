package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/spbnode/internal/infrastructure/config"
	"github.com/nerrad567/spbnode/internal/sparkplug"
)

// fakePublisher records every published value set.
type fakePublisher struct {
	mu        sync.Mutex
	published []sparkplug.Values
	failAt    int // 1-based publish call that fails, 0 = never
	err       error
	onPublish func(n int)
}

func (f *fakePublisher) Publish(_ context.Context, values sparkplug.Values) error {
	f.mu.Lock()
	f.published = append(f.published, values)
	n := len(f.published)
	hook := f.onPublish
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if f.failAt != 0 && n == f.failAt {
		return f.err
	}
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func indexGenerator(i int) sparkplug.Values {
	return sparkplug.Values{"int_message": int32(i)} //nolint:gosec // G115: test index
}

func testSchema(t *testing.T) *sparkplug.Schema {
	t.Helper()
	schema, err := sparkplug.NewSchema([]sparkplug.MetricDef{
		{Name: "string_message", Type: sparkplug.TypeString},
		{Name: "int_message", Type: sparkplug.TypeInt32},
		{Name: "float_message", Type: sparkplug.TypeFloat},
	})
	if err != nil {
		t.Fatalf("NewSchema() error = %v", err)
	}
	return schema
}

// =============================================================================
// New
// =============================================================================

func TestNew(t *testing.T) {
	valid := config.PublisherConfig{Interval: time.Millisecond, Count: 1}

	tests := []struct {
		name    string
		pub     Publisher
		gen     Generator
		cfg     config.PublisherConfig
		wantErr error
		anyErr  bool
	}{
		{name: "valid", pub: &fakePublisher{}, gen: indexGenerator, cfg: valid},
		{name: "nil publisher", gen: indexGenerator, cfg: valid, anyErr: true},
		{name: "nil generator", pub: &fakePublisher{}, cfg: valid, anyErr: true},
		{name: "zero interval", pub: &fakePublisher{}, gen: indexGenerator, cfg: config.PublisherConfig{Count: 1}, wantErr: ErrInvalidConfig},
		{name: "negative count", pub: &fakePublisher{}, gen: indexGenerator, cfg: config.PublisherConfig{Interval: time.Second, Count: -1}, wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.pub, tt.gen, tt.cfg)
			switch {
			case tt.anyErr:
				if err == nil {
					t.Error("New() should fail")
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, want %v", err, tt.wantErr)
				}
			case err != nil:
				t.Errorf("New() error = %v", err)
			}
		})
	}
}

// =============================================================================
// Run
// =============================================================================

func TestRun_Count(t *testing.T) {
	pub := &fakePublisher{}
	loop, err := New(pub, indexGenerator, config.PublisherConfig{Interval: time.Millisecond, Count: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if pub.count() != 5 {
		t.Fatalf("published %d messages, want 5", pub.count())
	}
	for i, v := range pub.published {
		if v["int_message"] != int32(i) { //nolint:gosec // G115: test index
			t.Errorf("message %d int_message = %v, want %d", i, v["int_message"], i)
		}
	}
}

func TestRun_UntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := &fakePublisher{onPublish: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	loop, err := New(pub, indexGenerator, config.PublisherConfig{Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}

	if pub.count() != 3 {
		t.Errorf("published %d messages, want 3", pub.count())
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := &fakePublisher{}
	loop, err := New(pub, indexGenerator, config.PublisherConfig{Interval: time.Millisecond, Count: 3})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := loop.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if pub.count() != 0 {
		t.Errorf("published %d messages, want 0", pub.count())
	}
}

func TestRun_PublishError(t *testing.T) {
	errBroker := errors.New("broker gone")
	pub := &fakePublisher{failAt: 2, err: errBroker}
	loop, err := New(pub, indexGenerator, config.PublisherConfig{Interval: time.Millisecond, Count: 10})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = loop.Run(context.Background())
	if !errors.Is(err, errBroker) {
		t.Fatalf("Run() error = %v, want %v", err, errBroker)
	}
	if pub.count() != 2 {
		t.Errorf("published %d messages, want 2", pub.count())
	}
}

// =============================================================================
// CounterGenerator
// =============================================================================

func TestCounterGenerator(t *testing.T) {
	gen := CounterGenerator(testSchema(t))

	tests := []struct {
		i    int
		want sparkplug.Values
	}{
		{0, sparkplug.Values{"string_message": "message nr 0", "int_message": int32(0), "float_message": float32(0)}},
		{7, sparkplug.Values{"string_message": "message nr 7", "int_message": int32(7), "float_message": float32(7) / 100}},
	}

	for _, tt := range tests {
		got := gen(tt.i)
		if len(got) != len(tt.want) {
			t.Fatalf("gen(%d) = %v, want %v", tt.i, got, tt.want)
		}
		for name, want := range tt.want {
			if got[name] != want {
				t.Errorf("gen(%d)[%s] = %v (%T), want %v (%T)", tt.i, name, got[name], got[name], want, want)
			}
		}
	}
}

func TestCounterGenerator_ValuesFitSchema(t *testing.T) {
	schema := testSchema(t)
	gen := CounterGenerator(schema)

	if _, err := schema.Normalize(gen(3)); err != nil {
		t.Errorf("Normalize(gen(3)) error = %v", err)
	}
}
