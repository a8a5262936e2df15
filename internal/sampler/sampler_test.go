package sampler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/statgo/stat/internal/procctl"
	"github.com/statgo/stat/internal/transport"
)

type stubController struct {
	frames    map[string][]procctl.Frame
	failCount map[string]int
}

func key(th procctl.ProcThread) string {
	return fmt.Sprintf("%s|%d|%d", th.Host, th.PID, th.TID)
}

func (c *stubController) StopAll(ctx context.Context, procs []procctl.ProcThread) error     { return nil }
func (c *stubController) ContinueAll(ctx context.Context, procs []procctl.ProcThread) error { return nil }
func (c *stubController) ReadPC(ctx context.Context, th procctl.ProcThread) (uint64, error) {
	return 0, nil
}
func (c *stubController) GetFileLine(ctx context.Context, host string, pc uint64) (string, int, error) {
	return "main.c", 42, nil
}
func (c *stubController) LoadLibrary(ctx context.Context, host, path string) error { return nil }

func (c *stubController) WalkStack(ctx context.Context, th procctl.ProcThread) ([]procctl.Frame, error) {
	k := key(th)
	if c.failCount[k] > 0 {
		c.failCount[k]--
		return nil, errors.New("transient stack walk failure")
	}
	return c.frames[k], nil
}

func TestSampleProcessBuildsPathFromRootToLeaf(t *testing.T) {
	th := procctl.ProcThread{Host: "node0", PID: 100, TID: 1}
	ctl := &stubController{frames: map[string][]procctl.Frame{
		key(th): {{Function: "main"}, {Function: "foo"}},
	}}
	s := New(ctl, nil)

	g, err := s.SampleProcess(context.Background(), []procctl.ProcThread{th}, 0, 8, 0, DefaultRetryBudget(), nil)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if g.EdgeCount() != 2 {
		t.Fatalf("expected 2 edges (root->main, main->foo), got %d", g.EdgeCount())
	}
}

func TestSampleProcessRetriesThenFails(t *testing.T) {
	th := procctl.ProcThread{Host: "node0", PID: 100, TID: 1}
	ctl := &stubController{
		frames:    map[string][]procctl.Frame{},
		failCount: map[string]int{key(th): 99},
	}
	s := New(ctl, nil)

	_, err := s.SampleProcess(context.Background(), []procctl.ProcThread{th}, 0, 8, 0, RetryBudget{MaxRetries: 2}, nil)
	if err == nil {
		t.Fatal("expected SampleFailed error after exhausting retry budget")
	}
}

func TestSampleProcessLineRendering(t *testing.T) {
	th := procctl.ProcThread{Host: "node0", PID: 100, TID: 1}
	ctl := &stubController{frames: map[string][]procctl.Frame{
		key(th): {{Function: "main", PC: 0x1000}},
	}}
	s := New(ctl, nil)

	getFileLine := func(pc uint64) (string, int, error) { return "main.c", 10, nil }
	g, err := s.SampleProcess(context.Background(), []procctl.ProcThread{th}, 0, 8, transport.FlagLine, DefaultRetryBudget(), getFileLine)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	found := false
	for _, n := range g.Nodes() {
		if n.Name == "main@main.c:10" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a node named main@main.c:10, got %+v", g.Nodes())
	}
}
