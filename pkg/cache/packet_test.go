package cache

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rafalohaki/ultramotd/pkg/protocol"
)

func statusResponse(t *testing.T, text string, proto int32) *protocol.StatusResponse {
	t.Helper()
	desc, err := protocol.TextDescription(text)
	if err != nil {
		t.Fatalf("TextDescription() error: %v", err)
	}
	return &protocol.StatusResponse{
		Version:     protocol.Version{Name: "1.21", Protocol: proto},
		Players:     &protocol.Players{Online: 0, Max: 100},
		Description: desc,
	}
}

func newTestPacketCache(t *testing.T, ttl time.Duration) *PacketCache {
	t.Helper()
	pc, err := NewPacketCache(ttl, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPacketCache() error: %v", err)
	}
	return pc
}

func TestNewPacketCache_InvalidTTL(t *testing.T) {
	if _, err := NewPacketCache(0, zerolog.Nop()); err == nil {
		t.Error("NewPacketCache(0) should fail")
	}
	if _, err := NewPacketCache(-time.Second, zerolog.Nop()); err == nil {
		t.Error("NewPacketCache(negative) should fail")
	}
}

func TestPacketCache_UpdateAndGet(t *testing.T) {
	pc := newTestPacketCache(t, DefaultPacketTTL)
	key := PacketKey{ProtocolVersion: 767}
	resp := statusResponse(t, "hello", 767)

	if err := pc.Update(key, resp); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	want, err := protocol.EncodeStatusPacket(resp)
	if err != nil {
		t.Fatalf("EncodeStatusPacket() error: %v", err)
	}

	buf := pc.Get(key)
	if buf == nil {
		t.Fatal("Get() = nil, want cached packet")
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("cached bytes differ from serialized content")
	}
	buf.Release()

	if pc.Size() != 1 {
		t.Errorf("Size() = %d, want 1", pc.Size())
	}
}

func TestPacketCache_GetUnknownKey(t *testing.T) {
	pc := newTestPacketCache(t, DefaultPacketTTL)

	if buf := pc.Get(PacketKey{ProtocolVersion: 47}); buf != nil {
		buf.Release()
		t.Error("Get() for unknown key should return nil")
	}
	if stats := pc.Stats(); stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
}

func TestPacketCache_TTLExpiry(t *testing.T) {
	pc := newTestPacketCache(t, 50*time.Millisecond)
	key := PacketKey{ProtocolVersion: 767}

	if err := pc.Update(key, statusResponse(t, "soon stale", 767)); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	if buf := pc.Get(key); buf == nil {
		t.Fatal("Get() before expiry = nil, want packet")
	} else {
		buf.Release()
	}

	time.Sleep(80 * time.Millisecond)

	if buf := pc.Get(key); buf != nil {
		buf.Release()
		t.Error("Get() after TTL should return nil")
	}
	if pc.Size() != 0 {
		t.Errorf("Size() after expiry removal = %d, want 0", pc.Size())
	}
}

func TestPacketCache_UpdateReplacesOldEntry(t *testing.T) {
	pc := newTestPacketCache(t, DefaultPacketTTL)
	key := PacketKey{ProtocolVersion: 767, VirtualHost: "mc.example.org"}

	if err := pc.Update(key, statusResponse(t, "first", 767)); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	first := pc.Get(key)
	if first == nil {
		t.Fatal("Get() = nil after first update")
	}

	if err := pc.Update(key, statusResponse(t, "second", 767)); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	// The replaced buffer stays readable for holders of prior references.
	_ = first.Bytes()
	first.Release()

	second := pc.Get(key)
	if second == nil {
		t.Fatal("Get() = nil after second update")
	}
	want, _ := protocol.EncodeStatusPacket(statusResponse(t, "second", 767))
	if !bytes.Equal(second.Bytes(), want) {
		t.Error("Get() should return the newest packet")
	}
	second.Release()

	if pc.Size() != 1 {
		t.Errorf("Size() = %d, want 1 (replace, not add)", pc.Size())
	}
}

func TestPacketCache_Clear(t *testing.T) {
	pc := newTestPacketCache(t, DefaultPacketTTL)

	for _, proto := range []int32{47, 340, 767} {
		key := PacketKey{ProtocolVersion: proto}
		if err := pc.Update(key, statusResponse(t, "motd", proto)); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
	}

	pc.Clear()

	if pc.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", pc.Size())
	}
	if buf := pc.Get(PacketKey{ProtocolVersion: 47}); buf != nil {
		buf.Release()
		t.Error("Get() after Clear should return nil")
	}
}

func TestPacketCache_ConcurrentUpdateAndGet(t *testing.T) {
	pc := newTestPacketCache(t, DefaultPacketTTL)
	key := PacketKey{ProtocolVersion: 767}
	other := PacketKey{ProtocolVersion: 47}

	if err := pc.Update(key, statusResponse(t, "base", 767)); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers on one key must never observe a partial packet while a
	// writer replaces another key and its own.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if buf := pc.Get(key); buf != nil {
					if len(buf.Bytes()) == 0 {
						t.Error("Get() returned empty packet")
					}
					buf.Release()
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if err := pc.Update(key, statusResponse(t, "rotating", 767)); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
		if err := pc.Update(other, statusResponse(t, "other", 47)); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
