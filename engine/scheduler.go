package engine

import (
	"context"
	"sync/atomic"

	"github.com/caseflow/engine/component"
	"golang.org/x/sync/errgroup"
)

// workerPool bounds fork/join concurrency with caller-runs backpressure:
// once its token budget is exhausted, a submission either queues (up to
// queueDepth waiters) for a free slot or, once the queue is also full,
// runs synchronously on the submitting goroutine instead of blocking
// indefinitely. This is a hard requirement of the tree-structured,
// parent-waits-for-children fork/join model — a bounded pool without a
// caller-runs escape hatch can deadlock a parent against its own
// children. A zero-size pool is unbounded: every submission gets its
// own goroutine.
type workerPool struct {
	tokens     chan struct{}
	queueDepth int32
	waiting    int32
	metrics    *Metrics
}

func newWorkerPool(size int, queueDepth int, metrics *Metrics) *workerPool {
	if size <= 0 {
		return &workerPool{metrics: metrics}
	}
	return &workerPool{tokens: make(chan struct{}, size), queueDepth: int32(queueDepth), metrics: metrics}
}

// acquire returns true once a token is held. It first tries a
// non-blocking grab; failing that, it reserves one of queueDepth wait
// slots and blocks for a token — only when the wait queue itself is
// already full does it give up and signal the caller to run inline.
func (wp *workerPool) acquire() bool {
	if wp.tokens == nil {
		return true
	}
	select {
	case wp.tokens <- struct{}{}:
		return true
	default:
	}
	if wp.queueDepth <= 0 {
		return false
	}
	if atomic.AddInt32(&wp.waiting, 1) > wp.queueDepth {
		atomic.AddInt32(&wp.waiting, -1)
		return false
	}
	defer atomic.AddInt32(&wp.waiting, -1)
	wp.tokens <- struct{}{}
	return true
}

func (wp *workerPool) release() {
	if wp.tokens != nil {
		<-wp.tokens
	}
}

// runAll drives fn for every item concurrently and blocks until all have
// returned, waiting on the pooled items through an errgroup.Group. The
// last item always runs inline, on the calling goroutine, propagating
// rootThread — this both shaves one goroutine off every fork and gives
// concrete meaning to the "root thread on a child path" ticket case: it
// is exactly the branch a root-thread fork chose to run inline instead
// of handing to the pool.
func (wp *workerPool) runAll(ctx context.Context, items []string, rootThread bool, fn func(ctx context.Context, item string, childRootThread bool) error) error {
	if len(items) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	last := len(items) - 1

	var callerErr error
	for i := 0; i < last; i++ {
		item := items[i]
		if wp.acquire() {
			g.Go(func() error {
				defer wp.release()
				return fn(gctx, item, false)
			})
		} else {
			if wp.metrics != nil {
				wp.metrics.ObserveCallerRuns()
			}
			if err := fn(gctx, item, false); err != nil && callerErr == nil {
				callerErr = err
			}
		}
	}

	inlineErr := fn(gctx, items[last], rootThread)
	waitErr := g.Wait()

	switch {
	case inlineErr != nil:
		return inlineErr
	case callerErr != nil:
		return callerErr
	default:
		return waitErr
	}
}

// fork handles P_ROUTE and P_ROUTE_DYNAMIC: run the route's user code
// once to get the branch set, spawn a child exec-path
// per branch, wait for all of them, then either hand the join's
// successor step back to the caller (clean completion) or signal that a
// descendant pended.
func (se *StepExecutor) fork(ctx context.Context, info *WorkflowInfo, pathName string, rootThread bool, step Step) (next string, pend bool, err error) {
	resp, callErr := se.invokeRoute(ctx, info, pathName, step)
	if callErr != nil {
		rt, wb, eh := systemErrorResponse(se.opts, callErr)
		resp = component.RouteResponse{ResponseType: rt, WorkBasket: wb, Error: eh}
	}

	if resp.ResponseType == ErrorPend {
		p, _ := info.Path(pathName)
		p.Status = StatusCompleted
		p.ResponseType = ErrorPend
		p.PrevPendWorkBasket = p.PendWorkBasket
		p.PendWorkBasket = resp.WorkBasket
		if p.PendWorkBasket == "" {
			p.PendWorkBasket = se.opts.SystemErrorWorkBasket
		}
		p.PendError = resp.Error
		info.SetPath(p)
		info.NotePending(pathName)
		return "", true, nil
	}
	if resp.ResponseType != OKProceed {
		return "", false, &EngineError{Code: CodeRouteContract, Message: "parallel route returned unexpected response type", CaseID: info.CaseID}
	}
	if len(resp.Branches) == 0 {
		return "", false, &EngineError{Code: CodeRouteContract, Message: "parallel route produced no branches", CaseID: info.CaseID}
	}

	children := make([]string, 0, len(resp.Branches))
	for _, branchName := range resp.Branches {
		var target string
		if step.Kind == KindParallelRouteDynamic {
			// Dynamic branches are chosen by the route's own user code at
			// runtime and need no predeclared Branches entry — they all
			// fan into the step's single template Next.
			target = step.Next
		} else {
			for _, b := range step.Branches {
				if b.Name == branchName {
					target = b.Next
					break
				}
			}
			if target == "" {
				return "", false, &EngineError{Code: CodeRouteContract, Message: "undeclared parallel branch " + branchName, CaseID: info.CaseID}
			}
		}
		childName := ExecPath{Name: pathName}.ChildName(step.Name, branchName)
		info.SetPath(ExecPath{Name: childName, Status: StatusStarted, Step: target})
		children = append(children, childName)
	}

	// Persist before spawning: a crash between this write and the
	// children actually starting is recoverable — the sanitizer finds
	// the STARTED children on the next resume and they re-dispatch from
	// the same cursor.
	if err := se.saveInfo(ctx, info); err != nil {
		return "", false, err
	}

	if err := se.pool.runAll(ctx, children, rootThread, func(ctx context.Context, childName string, childRootThread bool) error {
		return se.Run(ctx, info, childName, childRootThread)
	}); err != nil {
		return "", false, err
	}

	if pendPath, _ := infoPendExecPath(info); pendPath != "" {
		return "", true, nil
	}

	joinStep, ok := se.def.Step(step.JoinStep)
	if !ok {
		return "", false, &EngineError{Code: CodeStepNotFound, Message: "join step " + step.JoinStep + " not found", CaseID: info.CaseID}
	}
	return joinStep.Next, false, nil
}

// handleJoin is reached whenever an exec-path's own forward cursor lands
// on a P_JOIN step — every branch of a fork does, since each branch's
// last step targets the join by name ("A:a1→j,
// B:b1→j"). It always terminates this path: the decision of whether to
// continue past the join belongs solely to fork(), once every sibling
// (tracked through the worker pool's wait) has returned. This also gives
// "suppressed once per fork" for free — a path reaching the join here
// never writes its own audit record; only fork()'s caller does, once,
// for the whole parallel-route/join pair.
func (se *StepExecutor) handleJoin(ctx context.Context, info *WorkflowInfo, pathName string, step Step) (next string, terminal bool, err error) {
	p, _ := info.Path(pathName)
	p.Status = StatusCompleted
	p.ResponseType = OKProceed
	info.SetPath(p)
	return "", true, nil
}

func infoPendExecPath(info *WorkflowInfo) (string, bool) {
	var pend string
	info.WithLock(func() {
		pend = info.PendExecPath
	})
	return pend, pend != ""
}
