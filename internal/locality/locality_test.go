package locality_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"phylanx/internal/locality"
	"phylanx/internal/registry"
)

func TestRegistryValidate(t *testing.T) {
	reg := locality.NewLocalRegistry(3)
	if reg.NumLocalities() != 3 {
		t.Fatalf("NumLocalities() = %d, want 3", reg.NumLocalities())
	}
	if err := reg.Validate(1); err != nil {
		t.Errorf("Validate(1): %v", err)
	}
	if err := reg.Validate(5); err == nil {
		t.Error("expected Validate(5) to fail for a 3-locality registry")
	}
}

func TestEnvironmentContextSharesScratchpad(t *testing.T) {
	reg := locality.NewLocalRegistry(1)
	builtins := registry.NewRegistry()
	env := locality.NewEnvironment(0, reg, builtins)
	if env.Locality != 0 {
		t.Errorf("Locality = %d, want 0", env.Locality)
	}
	ec1 := env.Context()
	ec2 := env.Context()
	if ec1.Frame != ec2.Frame {
		t.Error("successive Context() calls should share the same root scratchpad Frame")
	}
}

func TestLocalTransportSendRoundTrip(t *testing.T) {
	sched := locality.NewScheduler(2)
	defer sched.Shutdown()
	tr := locality.NewLocalTransport(sched)

	tr.RegisterHandler(0, "ping", func(ctx context.Context, m locality.Message) locality.Reply {
		return locality.Reply{Payload: append([]byte("pong:"), m.Payload...)}
	})

	reply := <-tr.Send(context.Background(), locality.Message{From: 1, To: 0, Tag: "ping", Payload: []byte("hi")})
	if reply.Err != nil {
		t.Fatalf("Send: %v", reply.Err)
	}
	if got := string(reply.Payload); got != "pong:hi" {
		t.Errorf("reply payload = %q, want %q", got, "pong:hi")
	}
}

func TestLocalTransportSendToUnregisteredHandlerErrors(t *testing.T) {
	sched := locality.NewScheduler(1)
	defer sched.Shutdown()
	tr := locality.NewLocalTransport(sched)

	reply := <-tr.Send(context.Background(), locality.Message{From: 0, To: 1, Tag: "missing"})
	if reply.Err == nil {
		t.Error("expected an error sending to a locality/tag with no registered handler")
	}
}

func TestSchedulerStatsCountCompletedWork(t *testing.T) {
	sched := locality.NewScheduler(2)
	defer sched.Shutdown()

	done := make(chan struct{})
	sched.Schedule(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled continuation never ran")
	}
	// Give Stats a moment to observe the completed job (Schedule itself
	// only guarantees the continuation runs, not that the counter has
	// been incremented by the time Schedule returns).
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, completed := sched.Stats(); completed >= 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("Stats() never reported a completed job")
}

func TestWSTransportLoopbackRoundTrip(t *testing.T) {
	addrA := fmt.Sprintf(":%d", 18881)
	addrB := fmt.Sprintf(":%d", 18882)

	tA, err := locality.NewWSTransport(0, addrA)
	if err != nil {
		t.Fatalf("NewWSTransport(A): %v", err)
	}
	tB, err := locality.NewWSTransport(1, addrB)
	if err != nil {
		t.Fatalf("NewWSTransport(B): %v", err)
	}

	tB.RegisterHandler(1, "echo", func(ctx context.Context, m locality.Message) locality.Reply {
		return locality.Reply{Payload: m.Payload}
	})

	// The listener goroutines start asynchronously; poll until the dial
	// succeeds rather than guessing a fixed startup delay.
	var dialErr error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		dialErr = tA.Dial(1, "ws://127.0.0.1"+addrB+"/locality")
		if dialErr == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if dialErr != nil {
		t.Fatalf("Dial: %v", dialErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply := <-tA.Send(ctx, locality.Message{From: 0, To: 1, Tag: "echo", Payload: []byte("hello")})
	if reply.Err != nil {
		t.Fatalf("Send: %v", reply.Err)
	}
	if got := string(reply.Payload); got != "hello" {
		t.Errorf("echoed payload = %q, want %q", got, "hello")
	}
}
