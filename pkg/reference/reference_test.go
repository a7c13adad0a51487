package reference_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/reference"
	"github.com/papercomputeco/lamdag/pkg/syntax"
	"github.com/papercomputeco/lamdag/pkg/term"
)

var _ = Describe("Reference evaluator", func() {
	var store *term.Store

	BeforeEach(func() {
		store = term.NewStore()
	})

	normalize := func(src string) term.NodeID {
		prog, err := syntax.ParseProgram(src)
		Expect(err).NotTo(HaveOccurred())
		root, _, err := prog.Build(store)
		Expect(err).NotTo(HaveOccurred())

		t, err := reference.FromGraph(store, root, 0)
		Expect(err).NotTo(HaveOccurred())
		nf, _, err := reference.Normalize(t, 10_000)
		Expect(err).NotTo(HaveOccurred())

		id, err := reference.ToGraph(store, nf)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	It("reduces S K K to the identity", func() {
		got := normalize(`
S = \x y z. x z (y z)
K = \x y. x
S K K
`)
		Expect(got).To(Equal(normalize(`\x. x`)))
	})

	It("adds Church numerals", func() {
		got := normalize(`
add = \m n f x. m f (n f x)
two = \f x. f (f x)
three = \f x. f (f (f x))
add two three
`)
		Expect(got).To(Equal(normalize(`\f x. f (f (f (f (f x))))`)))
	})

	It("does not capture under binders", func() {
		// (\x. \y. x) y  reduces to  \z. y  with y still free.
		got := normalize(`(\x. \y. x) y`)
		b := term.NewBuilder(store)
		Expect(got).To(Equal(b.Lam(b.Var(1))))
	})

	It("stops at the step limit", func() {
		b := term.NewBuilder(store)
		x := b.Var(0)
		omega := b.Lam(b.App(x, x))
		root := b.App(omega, omega)
		Expect(b.Err()).NotTo(HaveOccurred())

		t, err := reference.FromGraph(store, root, 0)
		Expect(err).NotTo(HaveOccurred())

		_, steps, err := reference.Normalize(t, 25)
		Expect(errors.Is(err, reference.ErrStepLimit)).To(BeTrue())
		Expect(steps).To(Equal(25))
	})

	It("rejects knotted graphs", func() {
		id, err := store.Knot(func(self term.NodeID) (term.Node, error) {
			return term.Lam(self), nil
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = reference.FromGraph(store, id, 0)
		Expect(errors.Is(err, reference.ErrCyclic)).To(BeTrue())
	})

	It("unfolds shared nodes into copies within the limit", func() {
		b := term.NewBuilder(store)
		n := b.Var(0)
		for range 10 {
			n = b.App(n, n)
		}
		Expect(b.Err()).NotTo(HaveOccurred())

		t, err := reference.FromGraph(store, n, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Size()).To(Equal(2047))

		_, err = reference.FromGraph(store, n, 100)
		Expect(errors.Is(err, reference.ErrTooLarge)).To(BeTrue())
	})
})
