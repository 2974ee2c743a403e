package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sadopc/godupe/internal/digest"
	"github.com/sadopc/godupe/internal/model"
	"github.com/sadopc/godupe/internal/scanner"
)

// pool is a fixed set of hashing goroutines that live for one invocation and
// are driven through rounds, one size bucket per round.
type pool struct {
	ctx        context.Context
	src        scanner.Source
	alg        digest.Algorithm
	hash       DigestFunc
	onProgress func(int)
	logger     *slog.Logger

	queue *queue
	wg    sync.WaitGroup

	// Round state. workGiven is raised by the driver and lowered once every
	// roundDone flag is set.
	mu        sync.Mutex
	work      *sync.Cond
	done      *sync.Cond
	workGiven bool
	finished  bool
	roundDone []bool

	// Results of the current round plus the invocation-wide counter and
	// failure slot, all under resMu.
	resMu     sync.Mutex
	buckets   map[string][]string
	order     []string
	firstErr  error
	processed int
}

func newPool(ctx context.Context, workers int, opts Options) *pool {
	p := &pool{
		ctx:        ctx,
		src:        opts.Source,
		alg:        opts.Algorithm,
		hash:       opts.Digest,
		onProgress: opts.OnProgress,
		logger:     opts.Logger,
		queue:      newQueue(),
		roundDone:  make([]bool, workers),
		buckets:    make(map[string][]string),
	}
	p.work = sync.NewCond(&p.mu)
	p.done = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *pool) worker(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for !p.finished && (!p.workGiven || p.roundDone[id]) {
			p.work.Wait()
		}
		if p.finished {
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		p.drain()

		p.mu.Lock()
		p.roundDone[id] = true
		p.done.Broadcast()
		p.mu.Unlock()
	}
}

// drain hashes queued paths until the queue is empty or the round has failed.
func (p *pool) drain() {
	for {
		if p.failed() {
			return
		}
		path, ok := p.queue.pop()
		if !ok {
			return
		}

		sum, err := p.hash(p.ctx, p.src, p.alg, path)
		if err != nil {
			p.fail(err)
			return
		}
		p.record(sum, path)

		if err := p.ctx.Err(); err != nil {
			p.fail(err)
			return
		}
	}
}

func (p *pool) record(sum, path string) {
	p.resMu.Lock()
	defer p.resMu.Unlock()

	if _, ok := p.buckets[sum]; !ok {
		p.order = append(p.order, sum)
	}
	p.buckets[sum] = append(p.buckets[sum], path)
	p.processed++
	if p.onProgress != nil {
		p.onProgress(p.processed)
	}
}

// fail stores err unless an earlier failure is already recorded.
func (p *pool) fail(err error) {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	if p.firstErr == nil {
		p.firstErr = err
	}
}

func (p *pool) failed() bool {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	return p.firstErr != nil
}

func (p *pool) err() error {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	return p.firstErr
}

func (p *pool) hashed() int {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	return p.processed
}

// round hashes every path of one size bucket and blocks until all workers
// have reported done. It returns the first failure recorded so far.
func (p *pool) round(paths []string) error {
	p.resMu.Lock()
	clear(p.buckets)
	p.order = p.order[:0]
	p.resMu.Unlock()

	p.queue.load(paths)

	p.mu.Lock()
	for i := range p.roundDone {
		p.roundDone[i] = false
	}
	p.workGiven = true
	p.work.Broadcast()
	for !p.allDone() {
		p.done.Wait()
	}
	p.workGiven = false
	p.mu.Unlock()

	if left := p.queue.len(); left > 0 {
		p.logger.Debug("round stopped early", slog.Int("unhashed", left))
	}
	p.queue.clear()
	return p.err()
}

// allDone must be called with mu held.
func (p *pool) allDone() bool {
	for _, d := range p.roundDone {
		if !d {
			return false
		}
	}
	return true
}

// groups partitions the last round's results. Digests are visited in the
// order they were first produced and only those shared by two or more paths
// become groups. ctx is checked before each digest.
func (p *pool) groups(size uint64) ([]model.DuplicateGroup, error) {
	p.resMu.Lock()
	defer p.resMu.Unlock()

	var out []model.DuplicateGroup
	for _, sum := range p.order {
		if err := p.ctx.Err(); err != nil {
			return nil, err
		}
		paths := p.buckets[sum]
		if len(paths) < 2 {
			continue
		}
		out = append(out, model.DuplicateGroup{
			Digest: sum,
			Size:   size,
			Paths:  append([]string(nil), paths...),
		})
	}
	return out, nil
}

// shutdown stops every worker and waits for them to exit. Safe to call once
// per pool on any exit path.
func (p *pool) shutdown() {
	p.mu.Lock()
	p.finished = true
	p.work.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug("hash pool stopped", slog.Int("workers", len(p.roundDone)), slog.Int("hashed", p.hashed()))
}
