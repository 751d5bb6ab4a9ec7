package ygggo_gamedb

// Callback is a pending completion handler owned by a CallbackProcessor.
// InvokeIfReady runs whatever handlers have their result available and
// reports true once the callback has nothing left to do.
type Callback interface {
	InvokeIfReady() bool
}

// ChainFunc handles one query result of a chain. Returning a statement
// enqueues it as the next link's query; returning nil ends the chain.
type ChainFunc func(res *ResultSet, err error) *PreparedStatement

// QueryCallback drives a chain of query results. Each link's handler runs
// once its query completes, in order. A failed query still reaches its
// handler, but every later link is dropped.
type QueryCallback struct {
	db     *Database
	future *Future[*ResultSet]
	links  []ChainFunc
	done   bool
}

func newQueryCallback(db *Database, future *Future[*ResultSet]) *QueryCallback {
	return &QueryCallback{db: db, future: future}
}

// Then appends a link to the chain.
func (c *QueryCallback) Then(fn ChainFunc) *QueryCallback {
	c.links = append(c.links, fn)
	return c
}

// WithCallback appends a final handler that does not continue the chain.
func (c *QueryCallback) WithCallback(fn func(res *ResultSet, err error)) *QueryCallback {
	return c.Then(func(res *ResultSet, err error) *PreparedStatement {
		fn(res, err)
		return nil
	})
}

// Future returns the future of the query currently in flight.
func (c *QueryCallback) Future() *Future[*ResultSet] { return c.future }

func (c *QueryCallback) InvokeIfReady() bool {
	for {
		if c.done {
			return true
		}
		if !c.future.Ready() {
			return false
		}
		res, err := c.future.Result()
		if len(c.links) == 0 {
			c.finish()
			return true
		}

		link := c.links[0]
		c.links = c.links[1:]
		next := link(res, err)
		if err != nil || next == nil || len(c.links) == 0 {
			c.finish()
			return true
		}
		c.future = c.db.enqueueQuery(preparedStatement(next))
	}
}

func (c *QueryCallback) finish() {
	c.done = true
	c.links = nil
}

// TransactionCallback reports the outcome of an awaited commit.
type TransactionCallback struct {
	future *Future[bool]
	fn     func(ok bool)
}

func newTransactionCallback(future *Future[bool]) *TransactionCallback {
	return &TransactionCallback{future: future}
}

// AfterComplete sets the handler.
func (c *TransactionCallback) AfterComplete(fn func(ok bool)) *TransactionCallback {
	c.fn = fn
	return c
}

func (c *TransactionCallback) InvokeIfReady() bool {
	if !c.future.Ready() {
		return false
	}
	ok, _ := c.future.Result()
	if c.fn != nil {
		c.fn(ok)
		c.fn = nil
	}
	return true
}

// HolderCallback hands a completed QueryHolder back to the consumer. err is
// set when the holder as a whole could not run; failures of single queries
// are reported by QueryHolder.Err.
type HolderCallback struct {
	future *Future[*QueryHolder]
	fn     func(h *QueryHolder, err error)
}

func newHolderCallback(future *Future[*QueryHolder]) *HolderCallback {
	return &HolderCallback{future: future}
}

// AfterComplete sets the handler.
func (c *HolderCallback) AfterComplete(fn func(h *QueryHolder, err error)) *HolderCallback {
	c.fn = fn
	return c
}

func (c *HolderCallback) InvokeIfReady() bool {
	if !c.future.Ready() {
		return false
	}
	h, err := c.future.Result()
	if c.fn != nil {
		c.fn(h, err)
		c.fn = nil
	}
	return true
}

// CallbackProcessor is polled by the consumer loop, typically once per
// server tick. It is not safe for concurrent use; handlers run on the
// goroutine calling ProcessReady.
type CallbackProcessor struct {
	callbacks  []Callback
	processing bool
}

// AddCallback registers cb. Callbacks added from inside a handler are first
// considered on the next ProcessReady.
func (p *CallbackProcessor) AddCallback(cb Callback) {
	p.callbacks = append(p.callbacks, cb)
}

// Len returns the number of pending callbacks.
func (p *CallbackProcessor) Len() int { return len(p.callbacks) }

// ProcessReady invokes every ready callback and drops the finished ones,
// keeping the rest in registration order. It returns the number finished.
// Nested calls from inside a handler do nothing.
func (p *CallbackProcessor) ProcessReady() int {
	if p.processing || len(p.callbacks) == 0 {
		return 0
	}
	p.processing = true
	defer func() { p.processing = false }()

	current := p.callbacks
	p.callbacks = nil

	finished := 0
	pending := make([]Callback, 0, len(current))
	for _, cb := range current {
		if cb.InvokeIfReady() {
			finished++
			continue
		}
		pending = append(pending, cb)
	}
	p.callbacks = append(pending, p.callbacks...)
	return finished
}
