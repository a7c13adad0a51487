// Package storagetest holds the behaviors every storage.Driver must show,
// shared by the driver test suites.
package storagetest

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/storage"
	"github.com/papercomputeco/lamdag/pkg/term"
)

// Graph exports the Church numeral two with a free name attached.
func Graph() *term.Graph {
	GinkgoHelper()

	store := term.NewStore()
	b := term.NewBuilder(store)
	root := b.Lams(2, b.App(b.Var(1), b.App(b.Var(1), b.Var(0))))
	Expect(b.Err()).NotTo(HaveOccurred())

	g, err := store.Export(root)
	Expect(err).NotTo(HaveOccurred())
	g.FreeNames = []string{"y"}
	return g
}

// Omega exports a knot: a node that applies itself to itself.
func Omega() *term.Graph {
	GinkgoHelper()

	store := term.NewStore()
	root, err := store.Knot(func(self term.NodeID) (term.Node, error) {
		return term.App(self, self), nil
	})
	Expect(err).NotTo(HaveOccurred())

	g, err := store.Export(root)
	Expect(err).NotTo(HaveOccurred())
	return g
}

// Tower exports n nested abstractions over a variable, a graph of n+1 nodes.
func Tower(n int) *term.Graph {
	GinkgoHelper()

	store := term.NewStore()
	b := term.NewBuilder(store)
	root := b.Lams(n, b.Var(0))
	Expect(b.Err()).NotTo(HaveOccurred())

	g, err := store.Export(root)
	Expect(err).NotTo(HaveOccurred())
	return g
}

// DescribeDriver registers the driver behaviors. newDriver is called before
// every test and the driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
			driver = nil
		}
	})

	Describe("Put and Get", func() {
		It("stores and retrieves a graph", func() {
			g := Graph()
			inserted, err := driver.Put(ctx, "two", g)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			got, err := driver.Get(ctx, "two")
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.SameGraph(got, g)).To(BeTrue())
		})

		It("reloads into a fresh store as the same term", func() {
			g := Graph()
			_, err := driver.Put(ctx, "two", g)
			Expect(err).NotTo(HaveOccurred())
			got, err := driver.Get(ctx, "two")
			Expect(err).NotTo(HaveOccurred())

			a, b := term.NewStore(), term.NewStore()
			ra, err := a.Import(g)
			Expect(err).NotTo(HaveOccurred())
			rb, err := b.Import(got)
			Expect(err).NotTo(HaveOccurred())

			ea, err := a.Export(ra)
			Expect(err).NotTo(HaveOccurred())
			eb, err := b.Export(rb)
			Expect(err).NotTo(HaveOccurred())
			Expect(eb.Nodes).To(Equal(ea.Nodes))
		})

		It("keeps knots", func() {
			_, err := driver.Put(ctx, "omega", Omega())
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, "omega")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Nodes).To(HaveLen(1))

			store := term.NewStore()
			root, err := store.Import(got)
			Expect(err).NotTo(HaveOccurred())
			n, err := store.Get(root)
			Expect(err).NotTo(HaveOccurred())
			Expect(n.Fun).To(Equal(root))
			Expect(n.Arg).To(Equal(root))
		})

		It("stores graphs larger than one insert statement", func() {
			g := Tower(1_200)
			Expect(g.Nodes).To(HaveLen(1_201))

			_, err := driver.Put(ctx, "tower", g)
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, "tower")
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.SameGraph(got, g)).To(BeTrue())
		})

		It("is idempotent for the same graph", func() {
			_, err := driver.Put(ctx, "two", Graph())
			Expect(err).NotTo(HaveOccurred())

			inserted, err := driver.Put(ctx, "two", Graph())
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())
		})

		It("replaces a different graph", func() {
			_, err := driver.Put(ctx, "t", Graph())
			Expect(err).NotTo(HaveOccurred())

			inserted, err := driver.Put(ctx, "t", Omega())
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			got, err := driver.Get(ctx, "t")
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.SameGraph(got, Omega())).To(BeTrue())
		})

		It("rejects bad input", func() {
			_, err := driver.Put(ctx, "", Graph())
			Expect(err).To(MatchError(storage.ErrInvalidName))

			_, err = driver.Put(ctx, "x", nil)
			Expect(err).To(MatchError(storage.ErrNilGraph))
		})

		It("returns NotFoundError for unknown names", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{Name: "missing"}))
		})
	})

	Describe("Has, List and Delete", func() {
		BeforeEach(func() {
			for _, name := range []string{"b", "a", "c"} {
				_, err := driver.Put(ctx, name, Graph())
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("lists names in order", func() {
			Expect(driver.List(ctx)).To(Equal([]string{"a", "b", "c"}))
		})

		It("reports presence", func() {
			Expect(driver.Has(ctx, "a")).To(BeTrue())
			Expect(driver.Has(ctx, "z")).To(BeFalse())
		})

		It("deletes once", func() {
			Expect(driver.Delete(ctx, "b")).To(BeTrue())
			Expect(driver.Delete(ctx, "b")).To(BeFalse())
			Expect(driver.List(ctx)).To(Equal([]string{"a", "c"}))

			_, err := driver.Get(ctx, "b")
			Expect(err).To(MatchError(storage.NotFoundError{Name: "b"}))
		})
	})
}
