package memo_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/memo"
)

type steps int

func (s *steps) Take() bool {
	if *s <= 0 {
		return false
	}
	*s--
	return true
}

var _ = Describe("Table", func() {
	var (
		table *memo.Table
		ctx   context.Context
		key   memo.Key
	)

	BeforeEach(func() {
		table = memo.NewTable()
		ctx = context.Background()
		key = memo.Key{Mode: memo.Head, Node: 3, Env: 1}
	})

	It("reserves a fresh key and then serves the committed result", func() {
		_, hit, err := table.LookupOrReserve(ctx, key, 1, memo.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(hit).To(BeFalse())
		Expect(table.Peek(key).State).To(Equal(memo.InProgress))

		table.Commit(key, 1, memo.Result{Node: 7, Env: 0})

		res, hit, err := table.LookupOrReserve(ctx, key, 2, memo.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(hit).To(BeTrue())
		Expect(res).To(Equal(memo.Result{Node: 7, Env: 0}))

		stats := table.Stats()
		Expect(stats.Commits).To(Equal(1))
		Expect(stats.Hits).To(Equal(1))
	})

	It("ignores repeated commits", func() {
		_, _, _ = table.LookupOrReserve(ctx, key, 1, memo.Options{})
		table.Commit(key, 1, memo.Result{Node: 7})
		table.Commit(key, 1, memo.Result{Node: 8})

		Expect(table.Peek(key).Result.Node).To(BeEquivalentTo(7))
		Expect(table.Stats().Commits).To(Equal(1))
	})

	It("seeds the result's own key", func() {
		_, _, _ = table.LookupOrReserve(ctx, key, 1, memo.Options{})
		table.Commit(key, 1, memo.Result{Node: 7, Env: 2})

		seed := memo.Key{Mode: memo.Head, Node: 7, Env: 2}
		entry := table.Peek(seed)
		Expect(entry.State).To(Equal(memo.Done))
		Expect(entry.Seeded).To(BeTrue())
		Expect(entry.Result).To(Equal(memo.Result{Node: 7, Env: 2}))

		stats := table.Stats()
		Expect(stats.Commits).To(Equal(1))
		Expect(stats.Seeds).To(Equal(1))
	})

	It("counts a key that reduces to itself as a seed", func() {
		_, _, _ = table.LookupOrReserve(ctx, key, 1, memo.Options{})
		table.Commit(key, 1, memo.Result{Node: key.Node, Env: key.Env})

		entry := table.Peek(key)
		Expect(entry.State).To(Equal(memo.Done))
		Expect(entry.Seeded).To(BeTrue())

		stats := table.Stats()
		Expect(stats.Commits).To(BeZero())
		Expect(stats.Seeds).To(Equal(1))
	})

	It("reports NotYetReduced for unknown keys", func() {
		Expect(table.Peek(key).State).To(Equal(memo.NotYetReduced))
		Expect(table.Snapshot()).To(BeEmpty())
	})

	Context("with cycle detection", func() {
		It("reports re-entry by the same owner as divergent", func() {
			opts := memo.Options{DetectCycles: true}
			_, _, err := table.LookupOrReserve(ctx, key, 1, opts)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = table.LookupOrReserve(ctx, key, 1, opts)
			Expect(errors.Is(err, memo.ErrDivergentRedex)).To(BeTrue())

			table.Abort(key, 1, err)
			Expect(table.Peek(key).State).To(Equal(memo.Divergent))

			_, _, err = table.LookupOrReserve(ctx, key, 2, opts)
			Expect(errors.Is(err, memo.ErrDivergentRedex)).To(BeTrue())
		})
	})

	Context("without cycle detection", func() {
		It("nests activations and charges each one", func() {
			budget := steps(2)
			opts := memo.Options{Budget: &budget}

			_, _, err := table.LookupOrReserve(ctx, key, 1, opts)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = table.LookupOrReserve(ctx, key, 1, opts)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = table.LookupOrReserve(ctx, key, 1, opts)
			Expect(errors.Is(err, memo.ErrBudgetExhausted)).To(BeTrue())

			table.Abort(key, 1, err)
			Expect(table.Peek(key).State).To(Equal(memo.InProgress))
			table.Abort(key, 1, err)
			Expect(table.Peek(key).State).To(Equal(memo.BudgetExhausted))
		})
	})

	Describe("budget", func() {
		It("leaves a fresh key untouched when no step is left", func() {
			budget := steps(0)
			_, _, err := table.LookupOrReserve(ctx, key, 1, memo.Options{Budget: &budget})
			Expect(errors.Is(err, memo.ErrBudgetExhausted)).To(BeTrue())
			Expect(table.Peek(key).State).To(Equal(memo.NotYetReduced))
		})

		It("does not charge again for activations already paid for", func() {
			budget := steps(2)
			opts := memo.Options{Budget: &budget}

			_, _, _ = table.LookupOrReserve(ctx, key, 1, opts)
			_, _, _ = table.LookupOrReserve(ctx, key, 1, opts)
			table.Abort(key, 1, memo.ErrBudgetExhausted)
			table.Abort(key, 1, memo.ErrBudgetExhausted)
			Expect(budget).To(BeEquivalentTo(0))

			// Resuming replays both paid activations for free.
			_, _, err := table.LookupOrReserve(ctx, key, 1, opts)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = table.LookupOrReserve(ctx, key, 1, opts)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = table.LookupOrReserve(ctx, key, 1, opts)
			Expect(errors.Is(err, memo.ErrBudgetExhausted)).To(BeTrue())
		})
	})

	Describe("concurrent owners", func() {
		It("blocks a second owner until the first commits", func() {
			_, _, err := table.LookupOrReserve(ctx, key, 1, memo.Options{})
			Expect(err).NotTo(HaveOccurred())

			type lookup struct {
				res memo.Result
				hit bool
				err error
			}
			done := make(chan lookup, 1)
			go func() {
				res, hit, err := table.LookupOrReserve(ctx, key, 2, memo.Options{})
				done <- lookup{res, hit, err}
			}()

			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())
			table.Commit(key, 1, memo.Result{Node: 9})

			var got lookup
			Eventually(done).Should(Receive(&got))
			Expect(got.err).NotTo(HaveOccurred())
			Expect(got.hit).To(BeTrue())
			Expect(got.res.Node).To(BeEquivalentTo(9))
			Expect(table.Stats().Waits).To(BeNumerically(">=", 1))
		})

		It("takes over a key abandoned by another owner", func() {
			_, _, _ = table.LookupOrReserve(ctx, key, 1, memo.Options{})

			done := make(chan error, 1)
			go func() {
				_, _, err := table.LookupOrReserve(ctx, key, 2, memo.Options{})
				done <- err
			}()

			Consistently(done, 20*time.Millisecond).ShouldNot(Receive())
			table.Abort(key, 1, memo.ErrBudgetExhausted)

			Eventually(done).Should(Receive(BeNil()))
			entry := table.Peek(key)
			Expect(entry.State).To(Equal(memo.InProgress))
			Expect(entry.Owner).To(BeEquivalentTo(2))
		})

		It("reports a wait-for cycle between owners as divergent", func() {
			other := memo.Key{Mode: memo.Head, Node: 4, Env: 1}
			_, _, _ = table.LookupOrReserve(ctx, key, 1, memo.Options{})
			_, _, _ = table.LookupOrReserve(ctx, other, 2, memo.Options{})

			blocked := make(chan error, 1)
			go func() {
				_, _, err := table.LookupOrReserve(ctx, other, 1, memo.Options{})
				blocked <- err
			}()
			Eventually(func() int { return table.Stats().Waits }).Should(Equal(1))

			_, _, err := table.LookupOrReserve(ctx, key, 2, memo.Options{})
			Expect(errors.Is(err, memo.ErrDivergentRedex)).To(BeTrue())

			table.Abort(other, 2, err)
			Eventually(blocked).Should(Receive(MatchError(memo.ErrDivergentRedex)))
		})

		It("wakes waiters when their context is canceled", func() {
			_, _, _ = table.LookupOrReserve(ctx, key, 1, memo.Options{})

			cctx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				_, _, err := table.LookupOrReserve(cctx, key, 2, memo.Options{})
				done <- err
			}()

			Eventually(func() int { return table.Stats().Waits }).Should(Equal(1))
			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})
	})

	It("snapshots entries in key order and resets", func() {
		a := memo.Key{Mode: memo.Head, Node: 5}
		b := memo.Key{Mode: memo.Head, Node: 2}
		_, _, _ = table.LookupOrReserve(ctx, a, 1, memo.Options{})
		_, _, _ = table.LookupOrReserve(ctx, b, 1, memo.Options{})
		table.Commit(b, 1, memo.Result{Node: 2})

		snap := table.Snapshot()
		Expect(snap).To(HaveLen(2))
		Expect(snap[0].Key).To(Equal(b))
		Expect(snap[1].Key).To(Equal(a))
		Expect(table.Nodes()).To(ContainElements(BeEquivalentTo(5), BeEquivalentTo(2)))

		table.Reset()
		Expect(table.Len()).To(Equal(0))
		Expect(table.Stats()).To(Equal(memo.Stats{}))
	})
})
