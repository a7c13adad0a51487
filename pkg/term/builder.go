package term

// Builder interns nodes bottom-up and remembers the first error, so a whole
// term can be assembled before checking Err once.
type Builder struct {
	store *Store
	err   error
}

// NewBuilder returns a Builder over s.
func NewBuilder(s *Store) *Builder {
	return &Builder{store: s}
}

// Store returns the underlying node store.
func (b *Builder) Store() *Store {
	return b.store
}

// Err returns the first error encountered.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) intern(n Node) NodeID {
	if b.err != nil {
		return NoNode
	}

	id, err := b.store.Intern(n)
	if err != nil {
		b.err = err
		return NoNode
	}
	return id
}

// Var interns the variable with de Bruijn index i.
func (b *Builder) Var(i int) NodeID {
	return b.intern(Var(i))
}

// Lam interns an abstraction over body.
func (b *Builder) Lam(body NodeID) NodeID {
	return b.intern(Lam(body))
}

// Lams wraps body in n abstractions.
func (b *Builder) Lams(n int, body NodeID) NodeID {
	for range n {
		body = b.Lam(body)
	}
	return body
}

// App interns the application of f to a.
func (b *Builder) App(f, a NodeID) NodeID {
	return b.intern(App(f, a))
}

// Apps left-associates f applied to each of args.
func (b *Builder) Apps(f NodeID, args ...NodeID) NodeID {
	for _, a := range args {
		f = b.App(f, a)
	}
	return f
}
