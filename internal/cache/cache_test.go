package cache

import (
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := New(true)

	etag := c.Set("episodes:user:active", []byte(`[{"id":1}]`), time.Minute)
	if etag == "" {
		t.Fatal("Set returned empty etag")
	}

	data, gotETag, ok := c.Get("episodes:user:active")
	if !ok {
		t.Fatal("Get missed a freshly set key")
	}
	if string(data) != `[{"id":1}]` {
		t.Errorf("data = %s", data)
	}
	if gotETag != etag {
		t.Errorf("etag = %s, want %s", gotETag, etag)
	}

	if _, _, ok := c.Get("other"); ok {
		t.Error("Get hit an unset key")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(true)
	c.Set("k", []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if _, _, ok := c.Get("k"); ok {
		t.Error("Get hit an expired key")
	}
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c := New(true)
	c.Set("episodes:u1:active", []byte("a"), time.Minute)
	c.Set("episodes:u1:resolved", []byte("b"), time.Minute)
	c.Set("episodes:u2:active", []byte("c"), time.Minute)

	c.InvalidatePrefix("episodes:u1:")

	if _, _, ok := c.Get("episodes:u1:active"); ok {
		t.Error("Get hit an invalidated key")
	}
	if _, _, ok := c.Get("episodes:u1:resolved"); ok {
		t.Error("Get hit an invalidated key")
	}
	if _, _, ok := c.Get("episodes:u2:active"); !ok {
		t.Error("InvalidatePrefix dropped an unrelated user's key")
	}
}

func TestCacheDisabled(t *testing.T) {
	c := New(false)
	etag := c.Set("k", []byte("v"), time.Minute)
	if etag == "" {
		t.Error("disabled cache must still compute etags")
	}
	if _, _, ok := c.Get("k"); ok {
		t.Error("disabled cache must never hit")
	}
}

func TestCheckETagMatch(t *testing.T) {
	etag := ComputeETag([]byte("payload"))

	tests := []struct {
		ifNoneMatch string
		want        bool
	}{
		{etag, true},
		{"*", true},
		{"", false},
		{`W/"deadbeef"`, false},
	}
	for _, tt := range tests {
		if got := CheckETagMatch(tt.ifNoneMatch, etag); got != tt.want {
			t.Errorf("CheckETagMatch(%q) = %v, want %v", tt.ifNoneMatch, got, tt.want)
		}
	}
}

func TestComputeETagStable(t *testing.T) {
	a := ComputeETag([]byte("same"))
	b := ComputeETag([]byte("same"))
	if a != b {
		t.Errorf("etags differ for identical data: %s vs %s", a, b)
	}
	if a == ComputeETag([]byte("different")) {
		t.Error("etags collide for different data")
	}
}
