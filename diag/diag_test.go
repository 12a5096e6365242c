package diag

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"nesra/bus"
	"nesra/session"
	"nesra/util"
)

type fakeTarget struct {
	st     session.Status
	err    error
	resets int
}

func (f *fakeTarget) Status(ctx context.Context) (session.Status, error) { return f.st, f.err }
func (f *fakeTarget) Reset(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.resets++
	return nil
}

func newTestClient(t *testing.T, target Target) *Client {
	util.RedirectLog(t)

	lis := bufconn.Listen(1 << 16)
	gs := grpc.NewServer()
	Register(gs, target)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cc, err := grpc.Dial(
		"bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cc.Close() })
	return NewClient(cc)
}

func TestService_Status(t *testing.T) {
	target := &fakeTarget{st: session.Status{
		State:     session.Monitoring,
		InFlight:  2,
		Pending:   []uint8{0x00, 0x03},
		Queued:    []uint32{101},
		Watched:   7,
		Frames:    1800,
		GameID:    42,
		GameTitle: "Demo",
		Sampler:   bus.Stats{Buffers: 3, Events: 12},
	}}
	c := newTestClient(t, target)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if actual, expected := Summary(s), "monitoring: Demo"; actual != expected {
		t.Errorf("Summary, actual = %q, expected = %q", actual, expected)
	}
	m := s.AsMap()
	if diff := cmp.Diff([]interface{}{"00", "03"}, m["pending"]); diff != "" {
		t.Errorf("pending mismatch (-expected +actual):\n%s", diff)
	}
	if actual, expected := m["watched"], float64(7); actual != expected {
		t.Errorf("watched, actual = %v, expected = %v", actual, expected)
	}
	if diff := cmp.Diff(map[string]interface{}{"buffers": 3.0, "events": 12.0, "overruns": 0.0}, m["sampler"]); diff != "" {
		t.Errorf("sampler mismatch (-expected +actual):\n%s", diff)
	}
}

func TestService_Reset(t *testing.T) {
	target := &fakeTarget{}
	c := newTestClient(t, target)

	if err := c.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if actual, expected := target.resets, 1; actual != expected {
		t.Errorf("resets, actual = %d, expected = %d", actual, expected)
	}
}

func TestService_Unavailable(t *testing.T) {
	c := newTestClient(t, &fakeTarget{err: errors.New("session stopped")})

	_, err := c.Status(context.Background())
	if actual, expected := status.Code(err), codes.Unavailable; actual != expected {
		t.Errorf("Status code, actual = %v, expected = %v", actual, expected)
	}
	err = c.Reset(context.Background())
	if actual, expected := status.Code(err), codes.Unavailable; actual != expected {
		t.Errorf("Reset code, actual = %v, expected = %v", actual, expected)
	}
}

func TestSessionTarget(t *testing.T) {
	util.RedirectLog(t)

	s := session.New(session.DefaultConfig(), io.Discard)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, pr) }()

	target := SessionTarget(s)
	tctx, tcancel := context.WithTimeout(ctx, 5*time.Second)
	defer tcancel()

	st, err := target.Status(tctx)
	if err != nil {
		t.Fatal(err)
	}
	if actual, expected := st.State, session.Idle; actual != expected {
		t.Errorf("State, actual = %v, expected = %v", actual, expected)
	}
	if err = target.Reset(tctx); err != nil {
		t.Fatal(err)
	}

	cancel()
	if err = <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, expected context.Canceled", err)
	}

	// with the loop gone Do can only time out
	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer scancel()
	if _, err = target.Status(sctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Status() after Run, actual = %v, expected DeadlineExceeded", err)
	}
}
