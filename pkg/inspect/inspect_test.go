package inspect_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/inspect"
	"github.com/papercomputeco/lamdag/pkg/memo"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/syntax"
	"github.com/papercomputeco/lamdag/pkg/term"
)

var _ = Describe("Inspector", func() {
	var (
		ctx    context.Context
		store  *term.Store
		engine *reduce.Engine
		insp   *inspect.Inspector
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = term.NewStore()
		engine = reduce.NewEngine(store)
		insp = inspect.New(engine)
	})

	build := func(src string) (term.NodeID, []string) {
		prog, err := syntax.ParseProgram(src)
		Expect(err).NotTo(HaveOccurred())
		root, free, err := prog.Build(store)
		Expect(err).NotTo(HaveOccurred())
		return root, free
	}

	It("reports NotYetReduced before any run", func() {
		root, _ := build(`(\x. x) y`)
		Expect(insp.Peek(root, env.Empty).State).To(Equal(memo.NotYetReduced))

		node, e := insp.Best(root, env.Empty)
		Expect(node).To(Equal(root))
		Expect(e).To(Equal(env.Empty))
	})

	It("reports partial progress after the budget runs out", func() {
		root, _ := build(`(\x. x) ((\x. x) y)`)

		out, _ := engine.ReduceToNormalForm(ctx, root, 3)
		Expect(out.Status).To(Equal(reduce.BudgetExhausted))
		Expect(insp.Peek(root, env.Empty).State).To(Equal(memo.BudgetExhausted))

		progress := insp.Progress()
		Expect(progress[memo.Done]).To(BeNumerically(">=", 1))
		Expect(progress[memo.BudgetExhausted]).To(BeNumerically(">=", 1))

		out, err := engine.ReduceToNormalForm(ctx, root, 0)
		Expect(err).NotTo(HaveOccurred())

		report := insp.Peek(root, env.Empty)
		Expect(report.State).To(Equal(memo.Done))
		Expect(report.Result).To(Equal(memo.Result{Node: out.Node, Env: out.Env}))
	})

	It("renders best-known forms without reducing", func() {
		root, free := build(`
K = \x y. x
I = \x. x
(\p. p (I z)) K
`)
		out, err := engine.ReduceToNormalForm(ctx, root, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(insp.Render(root, env.Empty, free)).To(Equal(`\x. (\y. y) z`))

		// The operand is a thunk nobody has forced yet.
		b, _, err := engine.Envs().Lookup(out.Env, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(insp.Peek(b.Node, b.Env).State).To(Equal(memo.NotYetReduced))
		commits := engine.Stats().Memo.Commits

		_, err = engine.Run(ctx, reduce.Request{Root: b.Node, Env: b.Env})
		Expect(err).NotTo(HaveOccurred())
		Expect(insp.Render(root, env.Empty, free)).To(Equal(`\x. z`))

		// Rendering itself never commits anything.
		after := engine.Stats().Memo.Commits
		_ = insp.Render(root, env.Empty, free)
		Expect(engine.Stats().Memo.Commits).To(Equal(after))
		Expect(after).To(BeNumerically(">", commits))
	})

	It("prefers normal forms over head normal forms", func() {
		deep := reduce.NewEngine(store, reduce.WithMode(reduce.Deep))
		insp := inspect.New(deep)
		root, free := build(`(\f. \a. f (f a)) (\x. x)`)

		out, err := deep.ReduceToNormalForm(ctx, root, 0)
		Expect(err).NotTo(HaveOccurred())

		Expect(insp.PeekDeep(root, env.Empty, 0).State).To(Equal(memo.Done))
		node, e := insp.Best(root, env.Empty)
		Expect(node).To(Equal(out.Node))
		Expect(e).To(Equal(env.Empty))
		Expect(insp.Render(root, env.Empty, free)).To(Equal(`\x. x`))
	})

	It("is safe to call while a run is in flight", func() {
		noCycles := reduce.NewEngine(store, reduce.WithCycleDetection(false))
		insp := inspect.New(noCycles)
		root, _ := build(`(\x. x x) (\x. x x)`)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			out, _ := noCycles.ReduceToNormalForm(ctx, root, 5_000)
			Expect(out.Status).To(Equal(reduce.BudgetExhausted))
		}()

		for range 100 {
			report := insp.Peek(root, env.Empty)
			Expect(report.State).To(BeElementOf(memo.NotYetReduced, memo.InProgress, memo.BudgetExhausted))
			_ = insp.Render(root, env.Empty, nil)
		}
		wg.Wait()

		Expect(insp.Peek(root, env.Empty).State).To(Equal(memo.BudgetExhausted))
	})
})
