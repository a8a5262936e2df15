package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DaemonFunc is what a leaf daemon does in response to a broadcast: it
// either returns its local graph payload and ack value, or an error
// (simulating spec §7's SampleFailed / TransportIO / TargetExited kinds).
type DaemonFunc func(tag PayloadTag) (payload GraphPayload, ackValue int64, err error)

// TreeNode is one node of a reference overlay tree: interior nodes have
// Children and no Daemon; leaves have a Daemon and no Children.
type TreeNode struct {
	Host     string
	Children []*TreeNode
	Daemon   DaemonFunc
}

// InMemoryTransport is a single-process overlay-tree simulator used only by
// this repository's own tests for C4/C6/C7 (SPEC_FULL §4.9). It is never
// reached from cmd/stat or cmd/statd: production transport wiring is out
// of scope per spec §1.
type InMemoryTransport struct {
	root *TreeNode

	mu      sync.Mutex
	filters map[PayloadTag]ReductionFunc
	pending map[string]*roundResult
	seq     int
}

type roundResult struct {
	graph           GraphPayload
	sum             SumResult
	err             error
	done            chan struct{}
}

// NewInMemoryTransport builds a reference transport over the given tree.
func NewInMemoryTransport(root *TreeNode) *InMemoryTransport {
	return &InMemoryTransport{
		root:    root,
		filters: make(map[PayloadTag]ReductionFunc),
		pending: make(map[string]*roundResult),
	}
}

func (t *InMemoryTransport) RegisterFilter(tag PayloadTag, f ReductionFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filters[tag] = f
	return nil
}

func (t *InMemoryTransport) Broadcast(ctx context.Context, tag PayloadTag, body []byte) (string, error) {
	t.mu.Lock()
	t.seq++
	token := fmt.Sprintf("%s-%d", tag, t.seq)
	res := &roundResult{done: make(chan struct{})}
	t.pending[token] = res
	filter := t.filters[tag]
	t.mu.Unlock()

	go func() {
		defer close(res.done)
		graph, sum, err := t.runNode(ctx, t.root, tag, filter)
		res.graph, res.sum, res.err = graph, sum, err
	}()

	return token, nil
}

// runNode evaluates the subtree rooted at n, returning its reduced graph
// payload (for TagGather) and ack sum (for TagAck/TagVersion).
func (t *InMemoryTransport) runNode(ctx context.Context, n *TreeNode, tag PayloadTag, filter ReductionFunc) (GraphPayload, SumResult, error) {
	if n.Daemon != nil {
		graph, ack, err := n.Daemon(tag)
		if err != nil {
			return GraphPayload{}, SumResult{Sum: 0, RespondingCount: 0, ExpectedCount: 1}, err
		}
		return graph, SumResult{Sum: ack, RespondingCount: 1, ExpectedCount: 1}, nil
	}

	var batch []GraphPayload
	var sum SumResult
	for _, child := range n.Children {
		g, s, err := t.runNode(ctx, child, tag, filter)
		sum.ExpectedCount += s.ExpectedCount
		if err != nil {
			continue
		}
		sum.Sum += s.Sum
		sum.RespondingCount += s.RespondingCount
		batch = append(batch, g)
	}

	if len(batch) == 0 {
		return GraphPayload{}, sum, fmt.Errorf("transport: no responding children under %s", n.Host)
	}
	if filter == nil {
		return batch[0], sum, nil
	}
	merged, err := filter(ctx, batch)
	if err != nil {
		return GraphPayload{}, sum, err
	}
	return merged, sum, nil
}

func (t *InMemoryTransport) AwaitAck(ctx context.Context, ackToken string, timeout time.Duration) (SumResult, error) {
	res, err := t.await(ctx, ackToken, timeout)
	if res == nil {
		return SumResult{}, err
	}
	return res.sum, err
}

func (t *InMemoryTransport) AwaitGraph(ctx context.Context, ackToken string, timeout time.Duration) (GraphPayload, error) {
	res, err := t.await(ctx, ackToken, timeout)
	if res == nil {
		return GraphPayload{}, err
	}
	return res.graph, err
}

func (t *InMemoryTransport) await(ctx context.Context, ackToken string, timeout time.Duration) (*roundResult, error) {
	t.mu.Lock()
	res, ok := t.pending[ackToken]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("transport: unknown ack token %q", ackToken)
	}

	select {
	case <-res.done:
		return res, res.err
	case <-time.After(timeout):
		return res, fmt.Errorf("transport: timed out awaiting %q", ackToken)
	case <-ctx.Done():
		return res, ctx.Err()
	}
}
