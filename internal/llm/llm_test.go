package llm

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type flakyOracle struct {
	failures int
	calls    int
}

func (f *flakyOracle) Complete(ctx context.Context, system string, payload any) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("transient")
	}
	return `{"ok":true}`, nil
}

func (f *flakyOracle) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestRetryingRecovers(t *testing.T) {
	inner := &flakyOracle{failures: 2}
	r := WithRetries(inner, 3, time.Millisecond, nil)
	r.sleep = func(time.Duration) {}
	r.jitter = func() float64 { return 0 }

	got, err := r.Complete(context.Background(), "sys", nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("Complete() = %q", got)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryingExhausts(t *testing.T) {
	inner := &flakyOracle{failures: 10}
	r := WithRetries(inner, 3, time.Millisecond, nil)
	r.sleep = func(time.Duration) {}
	r.jitter = func() float64 { return 0 }

	if _, err := r.Complete(context.Background(), "sys", nil); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryingStopsOnCancel(t *testing.T) {
	inner := &flakyOracle{failures: 10}
	r := WithRetries(inner, 5, time.Millisecond, nil)
	r.sleep = func(time.Duration) {}
	r.jitter = func() float64 { return 0 }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Complete(ctx, "sys", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestParseJSONObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "strict",
			raw:  `{"a": 1}`,
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "code fence",
			raw:  "```json\n{\"a\": 1}\n```",
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "prose around object",
			raw:  `Here you go: {"a": 1} hope that helps`,
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "no object",
			raw:  "sorry, I cannot answer that",
			want: nil,
		},
		{
			name: "broken braces",
			raw:  `{"a": `,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseJSONObject(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseJSONObject() = %v, want %v", got, tt.want)
			}
		})
	}
}
