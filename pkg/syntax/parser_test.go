package syntax_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/syntax"
)

var _ = Describe("Parse", func() {
	DescribeTable("round-trips through String",
		func(src, want string) {
			e, err := syntax.Parse(src)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.String()).To(Equal(want))
		},
		Entry("identity", `\x. x`, `\x. x`),
		Entry("unicode lambda", `λx. x`, `\x. x`),
		Entry("curried binders", `\f x. f x`, `\f x. f x`),
		Entry("left associative application", `a b c`, `a b c`),
		Entry("parenthesized argument", `a (b c)`, `a (b c)`),
		Entry("trailing lambda argument", `f \x. x`, `f (\x. x)`),
		Entry("applied abstraction", `(\x. x) y`, `(\x. x) y`),
		Entry("let", `let i = \x. x in i i`, `let i = \x. x in i i`),
		Entry("comments and newlines", "(\\x. # identity\n x)\n y", `(\x. x) y`),
	)

	It("reports positions of syntax errors", func() {
		_, err := syntax.Parse("(\\x. x")
		Expect(errors.Is(err, syntax.ErrSyntax)).To(BeTrue())

		var serr *syntax.Error
		Expect(errors.As(err, &serr)).To(BeTrue())
		Expect(serr.Pos.Line).To(Equal(1))
	})

	It("rejects a lambda without parameters", func() {
		_, err := syntax.Parse(`\. x`)
		Expect(err).To(MatchError(ContainSubstring("expected parameter")))
	})

	It("rejects trailing tokens", func() {
		_, err := syntax.Parse(`x )`)
		Expect(err).To(MatchError(ContainSubstring("after term")))
	})

	It("desugars let into a redex", func() {
		e, err := syntax.Parse(`let i = \x. x in i`)
		Expect(err).NotTo(HaveOccurred())
		Expect(syntax.Desugar(e).String()).To(Equal(`(\i. i) (\x. x)`))
	})
})

var _ = Describe("ParseProgram", func() {
	It("reads definitions and a main term", func() {
		prog, err := syntax.ParseProgram(`
# Church booleans
true = \t f. t
false = \t f. f; not = \b. b false true

not true
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Definitions).To(HaveLen(3))
		Expect(prog.Definitions[2].Name).To(Equal("not"))
		Expect(prog.Main.String()).To(Equal("not true"))
	})

	It("falls back to a definition named main", func() {
		prog, err := syntax.ParseProgram("id = \\x. x\nmain = id id\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Main).To(Equal(syntax.Var{Name: "main"}))
	})

	It("requires a main term", func() {
		_, err := syntax.ParseProgram("id = \\x. x\n")
		Expect(err).To(MatchError(ContainSubstring("no main term")))
	})

	It("rejects two main terms", func() {
		_, err := syntax.ParseProgram("a\nb\n")
		Expect(err).To(MatchError(ContainSubstring("more than one main term")))
	})
})

var _ = Describe("Postfix", func() {
	It("parses the postfix token format", func() {
		e, err := syntax.ParsePostfix(`x y \ z @`)
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(Equal(syntax.App{
			Fun: syntax.Lam{Param: "x", Body: syntax.Var{Name: "y"}},
			Arg: syntax.Var{Name: "z"},
		}))
	})

	It("formats back to the same tokens", func() {
		e, err := syntax.Parse(`(\x. x x) (\y. y)`)
		Expect(err).NotTo(HaveOccurred())

		out := syntax.FormatPostfix(e)
		Expect(out).To(Equal(`x x x @ \ y y \ @`))

		again, err := syntax.ParsePostfix(out)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(e))
	})

	It("reports underflow", func() {
		_, err := syntax.ParsePostfix(`x @`)
		Expect(err).To(MatchError(ContainSubstring("underflow")))
	})

	It("requires a variable as parameter", func() {
		_, err := syntax.ParsePostfix(`f x @ y \`)
		Expect(err).To(MatchError(ContainSubstring("not a variable")))
	})

	It("requires exactly one term", func() {
		_, err := syntax.ParsePostfix(`x y`)
		Expect(err).To(MatchError(ContainSubstring("2 left")))
	})
})
