package sparkplug

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

var fixedTime = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	return NewCodec(testSchema(t), WithClock(fixedClock))
}

func fullValues() Values {
	return Values{"temp": 20.0, "status": "ok", "count": 0}
}

func mustDecode(t *testing.T, b []byte) *Payload {
	t.Helper()
	p, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return p
}

func TestCodec_EncodeBirth(t *testing.T) {
	c := newTestCodec(t)

	b, err := c.EncodeBirth(fullValues())
	if err != nil {
		t.Fatalf("EncodeBirth() error = %v", err)
	}

	p := mustDecode(t, b)
	if p.Seq != 0 {
		t.Errorf("birth seq = %d, want 0", p.Seq)
	}
	if len(p.Metrics) != c.Schema().Len() {
		t.Errorf("birth metrics = %d, want %d", len(p.Metrics), c.Schema().Len())
	}
	if p.Timestamp != uint64(fixedTime.UnixMilli()) {
		t.Errorf("birth timestamp = %d, want %d", p.Timestamp, fixedTime.UnixMilli())
	}
	if p.IsDeath() {
		t.Error("birth payload carries death marker")
	}

	// Metrics are encoded in schema order with their declared datatype.
	for i, name := range c.Schema().Names() {
		typ, _ := c.Schema().Type(name)
		if p.Metrics[i].Name != name || p.Metrics[i].DataType != typ {
			t.Errorf("metric[%d] = %s/%s, want %s/%s", i, p.Metrics[i].Name, p.Metrics[i].DataType, name, typ)
		}
		if p.Metrics[i].Timestamp != p.Timestamp {
			t.Errorf("metric[%d] timestamp = %d, want payload timestamp %d", i, p.Metrics[i].Timestamp, p.Timestamp)
		}
	}
	if c.Sequence() != 1 {
		t.Errorf("Sequence() after birth = %d, want 1", c.Sequence())
	}
}

func TestCodec_EncodeBirth_Incomplete(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.EncodeBirth(Values{"temp": 1.0})
	if !errors.Is(err, ErrIncompleteBirth) {
		t.Fatalf("EncodeBirth() error = %v, want ErrIncompleteBirth", err)
	}
	if c.Sequence() != 0 {
		t.Errorf("Sequence() = %d after failed birth, want 0", c.Sequence())
	}
}

func TestCodec_EncodeData_Sequence(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.EncodeBirth(fullValues()); err != nil {
		t.Fatalf("EncodeBirth() error = %v", err)
	}

	// 300 data payloads cross the 255 -> 0 wrap.
	const n = 300
	for i := 1; i <= n; i++ {
		b, err := c.EncodeData(Values{"count": i})
		if err != nil {
			t.Fatalf("EncodeData(%d) error = %v", i, err)
		}
		p := mustDecode(t, b)
		if want := uint64(i % 256); p.Seq != want {
			t.Fatalf("data %d seq = %d, want %d", i, p.Seq, want)
		}
	}
}

func TestCodec_EncodeData_Subset(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.EncodeBirth(fullValues()); err != nil {
		t.Fatalf("EncodeBirth() error = %v", err)
	}

	b, err := c.EncodeData(Values{"temp": 21.5})
	if err != nil {
		t.Fatalf("EncodeData() error = %v", err)
	}
	p := mustDecode(t, b)
	if len(p.Metrics) != 1 {
		t.Fatalf("data metrics = %d, want 1", len(p.Metrics))
	}
	if p.Metrics[0].Name != "temp" || p.Metrics[0].Value != float32(21.5) {
		t.Errorf("data metric = %+v, want temp=21.5", p.Metrics[0])
	}
	if p.Seq != 1 {
		t.Errorf("data seq = %d, want 1", p.Seq)
	}
	if p.Metrics[0].Timestamp != uint64(fixedTime.UnixMilli()) {
		t.Errorf("data metric timestamp = %d, want %d", p.Metrics[0].Timestamp, fixedTime.UnixMilli())
	}
}

func TestCodec_EncodeData_Errors(t *testing.T) {
	tests := []struct {
		name    string
		values  Values
		wantErr error
	}{
		{name: "unknown metric", values: Values{"pressure": 1.0}, wantErr: ErrUnknownMetric},
		{name: "mixed known and unknown", values: Values{"temp": 1.0, "pressure": 1.0}, wantErr: ErrUnknownMetric},
		{name: "type mismatch", values: Values{"status": 3}, wantErr: ErrTypeMismatch},
		{name: "empty", values: Values{}, wantErr: ErrNoMetrics},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCodec(t)
			if _, err := c.EncodeBirth(fullValues()); err != nil {
				t.Fatalf("EncodeBirth() error = %v", err)
			}
			before := c.Sequence()

			_, err := c.EncodeData(tt.values)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("EncodeData() error = %v, want %v", err, tt.wantErr)
			}
			if c.Sequence() != before {
				t.Errorf("Sequence() = %d after failed encode, want %d", c.Sequence(), before)
			}
		})
	}
}

func TestCodec_EncodeDeath(t *testing.T) {
	now := fixedTime
	c := NewCodec(testSchema(t), WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))

	first := c.EncodeDeath()
	second := c.EncodeDeath()
	if !bytes.Equal(first, second) {
		t.Error("EncodeDeath() not idempotent before birth")
	}

	p := mustDecode(t, first)
	if !p.IsDeath() {
		t.Error("death payload missing death marker")
	}
	if len(p.Metrics) != 0 {
		t.Errorf("death metrics = %d, want 0", len(p.Metrics))
	}
	if p.Seq != 0 {
		t.Errorf("death seq = %d, want 0", p.Seq)
	}

	// Returned slices are copies.
	first[0] ^= 0xff
	if !bytes.Equal(second, c.EncodeDeath()) {
		t.Error("EncodeDeath() returned shared backing array")
	}

	if c.Sequence() != 0 {
		t.Errorf("Sequence() = %d after death, want 0", c.Sequence())
	}
}

func TestCodec_EncodeDeath_ResetByBirth(t *testing.T) {
	now := fixedTime
	c := NewCodec(testSchema(t), WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))

	before := c.EncodeDeath()
	if _, err := c.EncodeBirth(fullValues()); err != nil {
		t.Fatalf("EncodeBirth() error = %v", err)
	}
	if _, err := c.EncodeData(Values{"count": 1}); err != nil {
		t.Fatalf("EncodeData() error = %v", err)
	}

	after := c.EncodeDeath()
	if bytes.Equal(before, after) {
		t.Error("death payload unchanged across birth")
	}
	if p := mustDecode(t, after); p.Seq != 2 {
		t.Errorf("death seq = %d, want 2", p.Seq)
	}
	if c.Sequence() != 2 {
		t.Errorf("Sequence() = %d, want 2", c.Sequence())
	}
}
