package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type scriptCall struct {
	keys []string
	args []any
}

// fakeScripter serves canned script replies and records every call.
type fakeScripter struct {
	calls   []scriptCall
	replies []any
	err     error
}

var _ redis.Scripter = (*fakeScripter)(nil)

func (f *fakeScripter) reply(keys []string, args []any) *redis.Cmd {
	f.calls = append(f.calls, scriptCall{keys: keys, args: args})
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	if len(f.replies) == 0 {
		return redis.NewCmdResult(int64(1), nil)
	}
	head := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return redis.NewCmdResult(head, nil)
}

func (f *fakeScripter) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.reply(keys, args)
}

func (f *fakeScripter) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return f.reply(keys, args)
}

func (f *fakeScripter) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.reply(keys, args)
}

func (f *fakeScripter) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return f.reply(keys, args)
}

func (f *fakeScripter) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(nil, nil)
}

func (f *fakeScripter) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time {
		return time.Unix(unix, 0).UTC()
	}
}

func TestCheckAPIKeyLimitAllowed(t *testing.T) {
	rdb := &fakeScripter{replies: []any{int64(1)}}
	limiter := NewLimiter(rdb, WithClock(fixedClock(1000)))

	res, err := limiter.CheckAPIKeyLimit(context.Background(), "key-1", 3, 60)
	if err != nil {
		t.Fatalf("CheckAPIKeyLimit() error = %v", err)
	}

	if !res.Allowed {
		t.Error("first call in the window should be allowed")
	}
	if res.Remaining != 2 {
		t.Errorf("Remaining = %d, want 2", res.Remaining)
	}
	// 1000 mod 60 = 40 seconds into the window.
	if res.ResetS != 20 {
		t.Errorf("ResetS = %d, want 20", res.ResetS)
	}

	if len(rdb.calls) != 1 {
		t.Fatalf("script calls = %d, want exactly 1", len(rdb.calls))
	}
	call := rdb.calls[0]
	if len(call.keys) != 1 || call.keys[0] != fmt.Sprintf("rl:key-1:%d", 1000/60) {
		t.Errorf("counter key = %v", call.keys)
	}
	if len(call.args) != 1 || call.args[0] != int64(60) {
		t.Errorf("script args = %v, want [60]", call.args)
	}
}

func TestCheckAPIKeyLimitDenied(t *testing.T) {
	rdb := &fakeScripter{replies: []any{int64(4)}}
	limiter := NewLimiter(rdb, WithClock(fixedClock(1000)))

	res, err := limiter.CheckAPIKeyLimit(context.Background(), "key-1", 3, 60)
	if err != nil {
		t.Fatalf("CheckAPIKeyLimit() error = %v", err)
	}

	if res.Allowed {
		t.Error("call over the limit should be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
	if len(rdb.calls) != 1 {
		t.Errorf("a denied call still costs exactly one round trip, got %d", len(rdb.calls))
	}
}

func TestCheckAPIKeyLimitWindowBoundary(t *testing.T) {
	rdb := &fakeScripter{}
	limiter := NewLimiter(rdb, WithClock(fixedClock(1200)))

	res, err := limiter.CheckAPIKeyLimit(context.Background(), "key-1", 3, 60)
	if err != nil {
		t.Fatalf("CheckAPIKeyLimit() error = %v", err)
	}

	// 1200 is an exact window start: a full window remains.
	if res.ResetS != 60 {
		t.Errorf("ResetS = %d, want 60 at the window boundary", res.ResetS)
	}
}

func TestCheckToolLimitKeyLayout(t *testing.T) {
	rdb := &fakeScripter{}
	limiter := NewLimiter(rdb, WithClock(fixedClock(1000)))

	if _, err := limiter.CheckToolLimit(context.Background(), "key-1", "echo", 3, 60); err != nil {
		t.Fatalf("CheckToolLimit() error = %v", err)
	}

	want := fmt.Sprintf("rl:key-1:echo:%d", 1000/60)
	if rdb.calls[0].keys[0] != want {
		t.Errorf("counter key = %q, want %q", rdb.calls[0].keys[0], want)
	}
}

func TestBlankSegmentsUseSentinels(t *testing.T) {
	rdb := &fakeScripter{}
	limiter := NewLimiter(rdb, WithClock(fixedClock(0)))

	if _, err := limiter.CheckToolLimit(context.Background(), "  ", "", 3, 60); err != nil {
		t.Fatalf("CheckToolLimit() error = %v", err)
	}

	want := "rl:__unknown_key__:__unknown_tool__:0"
	if rdb.calls[0].keys[0] != want {
		t.Errorf("counter key = %q, want %q", rdb.calls[0].keys[0], want)
	}
}

func TestCheckRejectsInvalidWindow(t *testing.T) {
	tests := []struct {
		name     string
		requests int
		window   int
		wantMsg  string
	}{
		{"zero requests", 0, 60, "requests must be greater than 0"},
		{"zero window", 3, 0, "window_seconds must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdb := &fakeScripter{}
			limiter := NewLimiter(rdb)

			_, err := limiter.CheckAPIKeyLimit(context.Background(), "key-1", tt.requests, tt.window)
			if err == nil || err.Error() != tt.wantMsg {
				t.Fatalf("error = %v, want %q", err, tt.wantMsg)
			}
			if len(rdb.calls) != 0 {
				t.Error("invalid window should not reach the store")
			}
		})
	}
}

func TestCheckPropagatesStoreError(t *testing.T) {
	rdb := &fakeScripter{err: errors.New("connection refused")}
	limiter := NewLimiter(rdb, WithClock(fixedClock(1000)))

	_, err := limiter.CheckAPIKeyLimit(context.Background(), "key-1", 3, 60)
	if err == nil {
		t.Fatal("store errors must surface to the caller")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error should carry the cause, got %v", err)
	}
}

func TestCheckCoercesStringReply(t *testing.T) {
	rdb := &fakeScripter{replies: []any{"5"}}
	limiter := NewLimiter(rdb, WithClock(fixedClock(1000)))

	res, err := limiter.CheckAPIKeyLimit(context.Background(), "key-1", 3, 60)
	if err != nil {
		t.Fatalf("CheckAPIKeyLimit() error = %v", err)
	}
	if res.Allowed {
		t.Error("count 5 of 3 should be denied")
	}
}
