package await_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/papercomputeco/cspr/pkg/types"
)

const handshake = "data: {\"ApiVersion\":\"1.5.6\"}\n\n"

func record(id int, key string) string {
	return fmt.Sprintf("id: %d\ndata: {%q:{\"id\":%d}}\n\n", id, key, id)
}

// fakeSource hands out one canned stream per open, in order.
type fakeSource struct {
	mu      sync.Mutex
	streams []string
	opens   int
}

func (f *fakeSource) OpenEventStream(_ context.Context, _ string, _ uint64) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opens >= len(f.streams) {
		return nil, errors.New("no stream left")
	}
	s := f.streams[f.opens]
	f.opens++
	return io.NopCloser(strings.NewReader(s)), nil
}

func (f *fakeSource) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// fakeBlocks returns blocks in order, repeating the last one.
type fakeBlocks struct {
	mu     sync.Mutex
	blocks []*types.Block
	err    error
	calls  int
}

func (f *fakeBlocks) LatestBlock(context.Context) (*types.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	i := min(f.calls-1, len(f.blocks)-1)
	return f.blocks[i], nil
}

func (f *fakeBlocks) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func block(era, height uint64) *types.Block {
	return &types.Block{Header: types.BlockHeader{EraID: era, Height: height}}
}

func switchBlock(era, height uint64) *types.Block {
	b := block(era, height)
	b.Header.EraEnd = &types.EraEnd{}
	return b
}
