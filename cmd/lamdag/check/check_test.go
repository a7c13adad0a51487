package checkcmder

import (
	"bytes"
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/session"
	"github.com/papercomputeco/lamdag/pkg/term"
)

const church = `two = \f x. f (f x)
add = \m n f x. m f (n f x)
mul = \m n f. m (n f)
mul (add two two) two
`

var _ = Describe("Check", func() {
	var sess *session.Session

	BeforeEach(func() {
		var err error
		sess, err = session.New(session.Config{Engine: reduce.NewEngine(term.NewStore(), reduce.WithMode(reduce.Deep))})
		Expect(err).NotTo(HaveOccurred())
	})

	check := func(src string, budget, referenceSteps int) Result {
		t, err := sess.Compile(src, false)
		Expect(err).NotTo(HaveOccurred())
		res, err := Check(context.Background(), sess, t, budget, referenceSteps, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		return res
	}

	It("agrees with the reference evaluator on church arithmetic", func() {
		res := check(church, 0, defaultReferenceSteps)
		Expect(res.Verdict).To(Equal(Match))
		Expect(res.Engine).To(Equal(`\x. \y. x (x (x (x (x (x (x (x y)))))))`))
		Expect(res.Reference).To(Equal(res.Engine))
		Expect(res.ReferenceSteps).To(BeNumerically(">", 0))
	})

	It("agrees on terms with free variables", func() {
		res := check(`(\x. \y. x) a b`, 0, defaultReferenceSteps)
		Expect(res.Verdict).To(Equal(Match))
		Expect(res.Engine).To(Equal("a"))
	})

	It("skips terms the engine cannot finish", func() {
		res := check(`(\x. x x) (\x. x x)`, 0, defaultReferenceSteps)
		Expect(res.Verdict).To(Equal(Skipped))
		Expect(res.Reason).To(ContainSubstring("engine"))

		res = check(church, 3, defaultReferenceSteps)
		Expect(res.Verdict).To(Equal(Skipped))
		Expect(res.Reason).To(ContainSubstring("budget"))
	})

	It("skips terms the reference evaluator cannot finish", func() {
		res := check(church, 0, 1)
		Expect(res.Verdict).To(Equal(Skipped))
		Expect(res.Reason).To(ContainSubstring("reference"))
		Expect(res.Engine).NotTo(BeEmpty())
	})
})

var _ = Describe("check command", func() {
	var out *bytes.Buffer

	BeforeEach(func() {
		out = &bytes.Buffer{}
		GinkgoT().Setenv("HOME", GinkgoT().TempDir())
	})

	run := func(args ...string) error {
		root := &cobra.Command{Use: "lamdag", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().Bool("debug", false, "")
		root.PersistentFlags().String("config-dir", GinkgoT().TempDir(), "")
		root.AddCommand(NewCheckCmd())
		root.SetOut(out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append([]string{"check"}, args...))
		return root.Execute()
	}

	It("prints agreeing normal forms", func() {
		Expect(run("-e", `(\f x. f (f x)) (\y. y)`)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("normal forms agree"))
		Expect(out.String()).To(ContainSubstring(`\x. x`))
	})

	It("reports skipped checks without failing", func() {
		Expect(run("-e", `(\x. x x) (\x. x x)`)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("skipped"))
	})

	It("fails on a mismatch", func() {
		err := printResult(out, "t.lam", Result{Verdict: Mismatch, Engine: "a", Reference: "b"})
		Expect(err).To(MatchError(ErrMismatch))
		Expect(out.String()).To(ContainSubstring("normal forms differ"))
	})
})
