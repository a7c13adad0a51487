package session_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/session"
	"github.com/papercomputeco/lamdag/pkg/term"
)

const church = `
two = \f x. f (f x)
add = \m n f x. m f (n f x)
add two two
`

var _ = Describe("Stream", func() {
	var (
		ctx  context.Context
		sess *session.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		sess, err = session.New(session.Config{Engine: reduce.NewEngine(term.NewStore())})
		Expect(err).NotTo(HaveOccurred())
	})

	collect := func(req session.Request, slice int) ([]session.Progress, session.Response) {
		var seen []session.Progress
		resp, err := sess.Stream(ctx, req, slice, func(p session.Progress) error {
			seen = append(seen, p)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		return seen, resp
	}

	It("resumes slice by slice until the reduction is done", func() {
		seen, resp := collect(session.Request{Source: church, Mode: "deep"}, 2)

		Expect(len(seen)).To(BeNumerically(">", 1))
		for i, p := range seen[:len(seen)-1] {
			Expect(p.Slice).To(Equal(i + 1))
			Expect(p.Status).To(Equal(reduce.BudgetExhausted))
			Expect(p.Steps).To(BeNumerically("<=", 2))
		}

		last := seen[len(seen)-1]
		Expect(last.Status).To(Equal(reduce.Done))
		Expect(last.States).To(HaveKey("done"))
		Expect(last.Total).To(Equal(resp.Steps))

		Expect(resp.Status).To(Equal(reduce.Done))
		Expect(resp.Rendered).To(Equal(`\x. \y. x (x (x (x y)))`))
	})

	It("needs no more steps than a single run", func() {
		_, streamed := collect(session.Request{Source: church, Mode: "deep"}, 1)

		other, err := session.New(session.Config{Engine: reduce.NewEngine(term.NewStore())})
		Expect(err).NotTo(HaveOccurred())
		whole, err := other.Reduce(ctx, session.Request{Source: church, Mode: "deep"})
		Expect(err).NotTo(HaveOccurred())

		Expect(streamed.Rendered).To(Equal(whole.Rendered))
		Expect(streamed.Steps).To(Equal(whole.Steps))
	})

	It("stops when the request budget is spent", func() {
		seen, resp := collect(session.Request{Source: church, Mode: "deep", Budget: 5}, 2)
		Expect(resp.Status).To(Equal(reduce.BudgetExhausted))
		Expect(resp.Steps).To(Equal(5))
		Expect(seen).To(HaveLen(3))
		Expect(seen[2].Steps).To(Equal(1))
	})

	It("stops at a divergent redex", func() {
		seen, resp := collect(session.Request{Source: `(\x. x x) (\x. x x)`}, 10)
		Expect(resp.Status).To(Equal(reduce.DivergentRedex))
		Expect(resp.Error).NotTo(BeEmpty())
		Expect(seen[len(seen)-1].Status).To(Equal(reduce.DivergentRedex))
	})

	It("stops when the callback fails", func() {
		boom := errors.New("client went away")
		calls := 0
		_, err := sess.Stream(ctx, session.Request{Source: church, Mode: "deep"}, 1, func(session.Progress) error {
			calls++
			return boom
		})
		Expect(err).To(MatchError(boom))
		Expect(calls).To(Equal(1))
	})

	It("rejects requests without a term", func() {
		_, err := sess.Stream(ctx, session.Request{}, 1, func(session.Progress) error { return nil })
		Expect(err).To(MatchError(session.ErrNoTerm))
	})
})
