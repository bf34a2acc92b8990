package gograd

import "sync"

// memo is a single-assignment cell for the lazy expansion of Composition,
// Derivative, Gradient and Jacobian nodes.  The first caller computes; a
// racing caller blocks until the value (or error) is published.  A
// panic that is not a gograd error is published as UnsupportedOperation.
type memo struct {
	once sync.Once
	val  *Expr
	err  error
}

func (m *memo) force(owner *Expr, expand func() *Expr) (*Expr, error) {
	m.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				m.val = nil
				m.err = UnsupportedOperation.New("expansion of %s panicked: %v", owner.kind, r)
				log.Error("expansion panicked", "kind", owner.kind, "panic", r)
			}
		}()
		m.err = catch(func() { m.val = expand() })
		if m.err != nil {
			log.Debug("expansion failed", "kind", owner.kind, "err", m.err)
			return
		}
		log.Debug("expanded", "kind", owner.kind, "shape", owner.shape, "into", m.val.kind)
	})
	return m.val, m.err
}

