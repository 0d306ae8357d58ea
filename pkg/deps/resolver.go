package deps

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/matzehuels/reqlint/pkg/dag"
)

const workers = 20

// Fetcher retrieves package metadata from an index.
type Fetcher interface {
	// Fetch retrieves package information by name. If refresh is true,
	// cached data is bypassed. Dependencies in the result must already be
	// filtered by env.
	Fetch(ctx context.Context, name string, env map[string]string, refresh bool) (*Package, error)
}

// Resolver builds a dependency graph starting from a root package.
type Resolver interface {
	// Resolve fetches the package and its transitive dependencies,
	// returning a DAG with nodes for each package and edges for dependencies.
	Resolve(ctx context.Context, pkg string, opts Options) (*dag.DAG, error)
	// Name returns the resolver's identifier (e.g., "pypi").
	Name() string
}

// Registry implements Resolver by wrapping a Fetcher with concurrent crawling.
type Registry struct {
	name    string
	fetcher Fetcher
}

// NewRegistry creates a Resolver that crawls dependencies using the given Fetcher.
func NewRegistry(name string, fetcher Fetcher) *Registry {
	return &Registry{name: name, fetcher: fetcher}
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Resolve crawls dependencies starting from pkg, respecting Options limits.
func (r *Registry) Resolve(ctx context.Context, pkg string, opts Options) (*dag.DAG, error) {
	opts = opts.WithDefaults()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c := &crawler{
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		env:     opts.Environment,
		fetch:   r.fetcher.Fetch,
		g:       dag.New(nil),
		meta:    make(map[string]map[string]any),
		visited: make(map[string]bool),
		jobs:    make(chan job, workers*2),
		results: make(chan result, workers*2),
	}
	return c.run(pkg)
}

// Expand resolves every direct dependency of the project graph g and merges
// the transitive graphs into a new graph rooted at [ProjectRoot]. Failures on
// individual packages are logged and leave the direct edge in place.
func Expand(ctx context.Context, g *dag.DAG, res Resolver, opts Options) (*dag.DAG, error) {
	opts = opts.WithDefaults()
	merged := dag.New(g.Meta())
	root, ok := g.Node(ProjectRoot)
	if !ok {
		return g, nil
	}
	_ = merged.AddNode(dag.Node{ID: ProjectRoot, Meta: root.Meta})

	for _, e := range g.Edges() {
		if e.From != ProjectRoot {
			continue
		}
		if n, ok := g.Node(e.To); ok {
			merged.EnsureNode(dag.Node{ID: n.ID, Meta: n.Meta})
		}
		if e.Meta["inactive"] == true {
			_ = merged.AddEdge(e)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sub, err := res.Resolve(ctx, e.To, opts)
		if err != nil {
			opts.Logger("resolve failed: %s: %v", e.To, err)
			_ = merged.AddEdge(e)
			continue
		}
		for _, n := range sub.Nodes() {
			merged.EnsureNode(dag.Node{ID: n.ID, Meta: n.Meta})
		}
		for _, se := range sub.Edges() {
			_ = merged.AddEdge(dag.Edge{From: se.From, To: se.To, Meta: se.Meta})
		}
		_ = merged.AddEdge(e)
	}
	return merged, nil
}

type crawler struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	env    map[string]string
	fetch  func(context.Context, string, map[string]string, bool) (*Package, error)

	g    *dag.DAG
	meta map[string]map[string]any

	jobs    chan job
	results chan result
	wg      sync.WaitGroup

	mu        sync.Mutex
	visited   map[string]bool
	pending   int64
	nodeCount int32
}

type job struct {
	name  string
	depth int
}

type result struct {
	job
	pkg *Package
	err error
}

func (c *crawler) run(root string) (*dag.DAG, error) {
	for range workers {
		c.wg.Add(1)
		go c.worker()
	}

	c.enqueue(job{name: root})
	if err := c.collect(root); err != nil {
		c.cancel()
		c.wg.Wait()
		return nil, err
	}

	close(c.jobs)
	c.wg.Wait()
	c.applyMeta()

	return c.g, nil
}

func (c *crawler) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case j, ok := <-c.jobs:
			if !ok {
				return
			}
			pkg, err := c.fetch(c.ctx, j.name, c.env, c.opts.Refresh)
			select {
			case c.results <- result{job: j, pkg: pkg, err: err}:
			case <-c.ctx.Done():
				return
			}
		}
	}
}

func (c *crawler) enqueue(j job) bool {
	c.mu.Lock()
	if c.visited[j.name] {
		c.mu.Unlock()
		return false
	}
	c.visited[j.name] = true
	c.mu.Unlock()

	atomic.AddInt64(&c.pending, 1)

	go func() {
		select {
		case c.jobs <- j:
		case <-c.ctx.Done():
		}
	}()
	return true
}

func (c *crawler) collect(root string) error {
	for {
		if err := c.ctx.Err(); err != nil {
			return err
		}
		select {
		case r := <-c.results:
			if err := c.handle(r, root); err != nil {
				return err
			}
			if atomic.AddInt64(&c.pending, -1) == 0 {
				return nil
			}
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
}

func (c *crawler) handle(r result, root string) error {
	if r.err != nil {
		if r.name == root {
			return r.err
		}
		c.opts.Logger("fetch failed: %s: %v", r.name, r.err)
		return nil
	}

	c.g.EnsureNode(dag.Node{ID: r.name})
	atomic.AddInt32(&c.nodeCount, 1)

	c.mu.Lock()
	c.meta[r.name] = r.pkg.Metadata()
	c.mu.Unlock()

	c.enqueueDeps(r)
	return nil
}

func (c *crawler) enqueueDeps(r result) {
	if r.depth >= c.opts.MaxDepth || len(r.pkg.Dependencies) == 0 {
		return
	}

	next := r.depth + 1
	count := atomic.LoadInt32(&c.nodeCount)

	for _, dep := range r.pkg.Dependencies {
		c.g.EnsureNode(dag.Node{ID: dep})
		_ = c.g.AddEdge(dag.Edge{From: r.name, To: dep})

		if int(count) < c.opts.MaxNodes {
			c.enqueue(job{name: dep, depth: next})
		}
	}
}

func (c *crawler) applyMeta() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, m := range c.meta {
		c.g.EnsureNode(dag.Node{ID: id, Meta: m})
	}
}
