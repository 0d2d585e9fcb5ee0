// Package pool provides a generic resource pool with acquire/release
// semantics, a FIFO waiting queue, idle eviction, and a self-healing
// minimum-size floor.
//
// A Pool manages resources created by a Factory implementation. Acquire
// returns an idle resource when one exists (optionally re-validated), creates
// a new one while below MaxSize, and otherwise queues the caller until a
// release frees a resource or AcquireTimeout elapses. Waiters are satisfied
// strictly in call order.
//
//	factory := &connFactory{} // implements pool.Factory[*Conn]
//	p := pool.New("db", factory, pool.Config{
//	    MinSize:           2,
//	    MaxSize:           10,
//	    AcquireTimeout:    10 * time.Second,
//	    IdleTimeout:       10 * time.Minute,
//	    EvictionInterval:  2 * time.Minute,
//	    ValidateOnAcquire: true,
//	})
//
//	res, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Release(res.ID)
//	use(res.Value)
//
// Error taxonomy: ErrAcquireTimeout for exhausted waits, CreateError
// (matching ErrCreateFailed) when the factory fails after all retries, and
// ErrPoolClosed after Clear. Validation failures are handled internally: the
// bad resource is destroyed and acquisition falls through to the next path.
package pool
