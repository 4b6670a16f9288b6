package resolver

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/R167/ipwatch/common"
	"github.com/R167/ipwatch/internal/output"
)

// scriptedFetcher returns answers in order, repeating the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	answers []string
	calls   []string
}

func (f *scriptedFetcher) Fetch(ctx context.Context, serverURL string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, serverURL)
	i := len(f.calls) - 1
	if i >= len(f.answers) {
		i = len(f.answers) - 1
	}
	return f.answers[i]
}

// mapFetcher answers per server.
type mapFetcher struct {
	mu      sync.Mutex
	answers map[string]string
	calls   map[string]int
}

func (f *mapFetcher) Fetch(ctx context.Context, serverURL string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[serverURL]++
	return f.answers[serverURL]
}

var testServers = []string{
	"http://a.example",
	"http://b.example",
	"http://c.example",
	"http://d.example",
}

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(42, 1024))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestResolve_StopsAtFirstAcceptable(t *testing.T) {
	f := &scriptedFetcher{answers: []string{"", "10.0.0.300", "203.0.113.7", "198.51.100.1"}}
	r := New(f, WithRand(seeded()))

	rec, err := r.Resolve(context.Background(), testServers, 7, common.NewBlacklist())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(f.calls) != 3 {
		t.Errorf("fetch called %d times, want 3", len(f.calls))
	}
	if rec.IP != "203.0.113.7" {
		t.Errorf("IP = %q, want 203.0.113.7", rec.IP)
	}
	if rec.Server != f.calls[2] {
		t.Errorf("Server = %q, want the third queried server %q", rec.Server, f.calls[2])
	}
}

func TestResolve_BoundedByTryCount(t *testing.T) {
	tests := []struct {
		name      string
		tryCount  int
		wantCalls int
	}{
		{"one", 1, 1},
		{"seven", 7, 7},
		{"zero treated as one", 0, 1},
		{"negative treated as one", -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{answers: []string{""}}
			r := New(f, WithRand(seeded()))

			rec, err := r.Resolve(context.Background(), testServers, tt.tryCount, nil)
			if !errors.Is(err, ErrAttemptsExhausted) {
				t.Errorf("Resolve() error = %v, want ErrAttemptsExhausted", err)
			}
			if len(f.calls) != tt.wantCalls {
				t.Errorf("fetch called %d times, want %d", len(f.calls), tt.wantCalls)
			}
			if rec.IP != "" {
				t.Errorf("IP = %q, want empty", rec.IP)
			}
		})
	}
}

func TestResolve_BlacklistedOnlyAnswer(t *testing.T) {
	f := &scriptedFetcher{answers: []string{"192.0.2.99"}}
	out := output.NewBufferedOutput()
	r := New(f, WithRand(seeded()), WithOutput(out))

	rec, err := r.Resolve(context.Background(), testServers, 5, common.NewBlacklist("192.0.2.99"))
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Resolve() error = %v, want ErrAttemptsExhausted", err)
	}
	if len(f.calls) != 5 {
		t.Errorf("fetch called %d times, want 5", len(f.calls))
	}
	if rec.IP != "192.0.2.99" {
		t.Errorf("IP = %q, want the blacklisted address returned as-is", rec.IP)
	}
	if !contains(testServers, rec.Server) {
		t.Errorf("Server = %q, not from the pool", rec.Server)
	}

	report := out.String()
	for i := 1; i <= 5; i++ {
		if !strings.Contains(report, fmt.Sprintf("Try %d:  Bad IP (in Blacklist): 192.0.2.99", i)) {
			t.Errorf("report missing blacklist line for try %d:\n%s", i, report)
		}
	}
}

func TestResolve_ReturnsLastAttemptWhenExhausted(t *testing.T) {
	f := &scriptedFetcher{answers: []string{"192.0.2.1", "", "999.0.0.1"}}
	r := New(f, WithRand(seeded()))

	rec, err := r.Resolve(context.Background(), testServers, 3, common.NewBlacklist("192.0.2.1"))
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Resolve() error = %v, want ErrAttemptsExhausted", err)
	}
	if rec.IP != "999.0.0.1" {
		t.Errorf("IP = %q, want last attempt's answer", rec.IP)
	}
	if rec.Server != f.calls[2] {
		t.Errorf("Server = %q, want last queried server %q", rec.Server, f.calls[2])
	}
}

func TestResolve_AcceptsIPv6(t *testing.T) {
	f := &scriptedFetcher{answers: []string{"2001:db8::1"}}
	r := New(f, WithRand(seeded()))

	rec, err := r.Resolve(context.Background(), testServers, 3, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if rec.IP != "2001:db8::1" || len(f.calls) != 1 {
		t.Errorf("got %q after %d calls", rec.IP, len(f.calls))
	}
}

func TestResolve_EmptyPool(t *testing.T) {
	f := &scriptedFetcher{answers: []string{"203.0.113.7"}}
	r := New(f, WithRand(seeded()))

	rec, err := r.Resolve(context.Background(), nil, 7, nil)
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Resolve() error = %v, want ErrAttemptsExhausted", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("fetch called %d times, want 0", len(f.calls))
	}
	if rec != (common.AddressRecord{}) {
		t.Errorf("record = %+v, want zero", rec)
	}
}

func TestResolve_SeededSelectionIsDeterministic(t *testing.T) {
	run := func() []string {
		f := &scriptedFetcher{answers: []string{""}}
		r := New(f, WithRand(seeded()))
		r.Resolve(context.Background(), testServers, 20, nil)
		return f.calls
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same seed picked different servers:\n%v\n%v", first, second)
	}
	for _, s := range first {
		if !contains(testServers, s) {
			t.Errorf("picked %q, not in pool", s)
		}
	}
}

func TestResolve_SamplesWithReplacement(t *testing.T) {
	f := &scriptedFetcher{answers: []string{""}}
	r := New(f, WithRand(seeded()))

	r.Resolve(context.Background(), []string{"http://only.example"}, 4, nil)
	if len(f.calls) != 4 {
		t.Fatalf("fetch called %d times, want 4", len(f.calls))
	}
	for _, s := range f.calls {
		if s != "http://only.example" {
			t.Errorf("picked %q", s)
		}
	}
}

func TestResolve_ReportsMalformed(t *testing.T) {
	f := &scriptedFetcher{answers: []string{"", "203.0.113.7"}}
	out := output.NewBufferedOutput()
	r := New(f, WithRand(seeded()), WithOutput(out))

	if _, err := r.Resolve(context.Background(), testServers, 3, nil); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	lines := out.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d report lines, want 2: %v", len(lines), lines)
	}
	if lines[0].Level != output.LevelWarning || !strings.Contains(lines[0].Message, "Try 1:  Bad IP    (malformed)") {
		t.Errorf("line 0 = %+v", lines[0])
	}
	if lines[1].Level != output.LevelSuccess || !strings.Contains(lines[1].Message, "Try 2: Good IP") {
		t.Errorf("line 1 = %+v", lines[1])
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, servers := range [][]string{testServers, nil} {
		f := &scriptedFetcher{answers: []string{"203.0.113.7"}}
		_, err := New(f, WithRand(seeded())).Resolve(ctx, servers, 7, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Resolve(%d servers) error = %v, want context.Canceled", len(servers), err)
		}
		if len(f.calls) != 0 {
			t.Errorf("fetch called %d times on a cancelled context", len(f.calls))
		}
	}
}
