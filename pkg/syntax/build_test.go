package syntax_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/syntax"
	"github.com/papercomputeco/lamdag/pkg/term"
)

var _ = Describe("Build", func() {
	var store *term.Store

	BeforeEach(func() {
		store = term.NewStore()
	})

	build := func(src string) (term.NodeID, []string) {
		e, err := syntax.Parse(src)
		Expect(err).NotTo(HaveOccurred())
		id, free, err := syntax.Build(store, e)
		Expect(err).NotTo(HaveOccurred())
		return id, free
	}

	It("converts names to de Bruijn indices", func() {
		id, free := build(`\x y. x`)
		Expect(free).To(BeEmpty())

		b := term.NewBuilder(store)
		Expect(id).To(Equal(b.Lams(2, b.Var(1))))
	})

	It("interns alpha-equivalent terms to one node", func() {
		a, _ := build(`\x. \y. y x`)
		b, _ := build(`\p. \q. q p`)
		Expect(a).To(Equal(b))
	})

	It("numbers free names from the top in order of appearance", func() {
		id, free := build(`\x. y x z y`)
		Expect(free).To(Equal([]string{"y", "z"}))

		b := term.NewBuilder(store)
		want := b.Lam(b.Apps(b.Var(1), b.Var(0), b.Var(2), b.Var(1)))
		Expect(id).To(Equal(want))
	})

	It("lets inner binders shadow outer ones", func() {
		id, _ := build(`\x. \x. x`)
		b := term.NewBuilder(store)
		Expect(id).To(Equal(b.Lams(2, b.Var(0))))
	})

	Describe("programs", func() {
		It("shares definitions by identity", func() {
			prog, err := syntax.ParseProgram("id = \\x. x\nid id\n")
			Expect(err).NotTo(HaveOccurred())

			root, free, err := prog.Build(store)
			Expect(err).NotTo(HaveOccurred())
			Expect(free).To(BeEmpty())

			n, err := store.Get(root)
			Expect(err).NotTo(HaveOccurred())
			Expect(n.Kind).To(Equal(term.KindApplication))
			Expect(n.Fun).To(Equal(n.Arg))
		})

		It("ties recursive definitions into knots", func() {
			prog, err := syntax.ParseProgram("loop = \\x. loop x\nloop\n")
			Expect(err).NotTo(HaveOccurred())

			root, _, err := prog.Build(store)
			Expect(err).NotTo(HaveOccurred())

			lam, err := store.Get(root)
			Expect(err).NotTo(HaveOccurred())
			Expect(lam.Kind).To(Equal(term.KindAbstraction))
			app, err := store.Get(lam.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(app.Fun).To(Equal(root))
		})

		It("rejects definitions with free names", func() {
			prog, err := syntax.ParseProgram("k = \\x. y\nk\n")
			Expect(err).NotTo(HaveOccurred())

			_, _, err = prog.Build(store)
			Expect(errors.Is(err, syntax.ErrOpenDefinition)).To(BeTrue())
		})

		It("rejects a definition that is only itself", func() {
			prog, err := syntax.ParseProgram("x = x\nx\n")
			Expect(err).NotTo(HaveOccurred())

			_, _, err = prog.Build(store)
			Expect(err).To(MatchError(ContainSubstring("defined as itself")))
		})
	})
})
