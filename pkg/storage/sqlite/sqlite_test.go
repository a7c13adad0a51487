package sqlite_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/storage"
	"github.com/papercomputeco/lamdag/pkg/storage/sqlite"
	"github.com/papercomputeco/lamdag/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func() storage.Driver {
		d, err := sqlite.NewDriver(context.Background(), ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	It("persists across reopening a file database", func() {
		ctx := context.Background()
		path := filepath.Join(GinkgoT().TempDir(), "terms.db")

		d, err := sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		_, err = d.Put(ctx, "two", storagetest.Graph())
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Close()).To(Succeed())
		Expect(path).To(BeAnExistingFile())

		d, err = sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		got, err := d.Get(ctx, "two")
		Expect(err).NotTo(HaveOccurred())
		Expect(storage.SameGraph(got, storagetest.Graph())).To(BeTrue())
	})

	It("binds parameters through the ent sqlite dialect", func() {
		ctx := context.Background()
		d, err := sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		// Names that would break naive quoting or placeholder rewriting.
		for _, name := range []string{"what?", "it's", `"quoted"`, "$1"} {
			_, err := d.Put(ctx, name, storagetest.Graph())
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Has(ctx, name)).To(BeTrue(), name)
		}
		Expect(d.List(ctx)).To(ConsistOf("what?", "it's", `"quoted"`, "$1"))

		var tables int
		Expect(d.DB().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('terms', 'term_nodes')`,
		).Scan(&tables)).To(Succeed())
		Expect(tables).To(Equal(2))
	})
})
