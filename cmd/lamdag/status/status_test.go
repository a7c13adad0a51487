package statuscmder

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/dotdir"
)

var _ = Describe("runStatus", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	It("says so when nothing ran", func() {
		Expect(runStatus(out, dir)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No reductions recorded"))
	})

	It("shows the last run", func() {
		Expect(dotdir.NewManager().SaveLastRun(&dotdir.LastRun{
			RunID:  "run-1",
			Source: "I = \\x. x\nI z",
			Mode:   "head",
			Steps:  1,
			Status: "done",
			Result: "z",
			At:     time.Now(),
		}, dir)).To(Succeed())

		Expect(runStatus(out, dir)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("run-1"))
		Expect(out.String()).To(ContainSubstring(`I = \x. x I z`))
		Expect(out.String()).To(ContainSubstring("done"))
	})

	It("clears the record", func() {
		Expect(dotdir.NewManager().SaveLastRun(&dotdir.LastRun{RunID: "run-1", Status: "done"}, dir)).To(Succeed())

		cmd := NewStatusCmd()
		cmd.Flags().String("config-dir", dir, "")
		cmd.SetArgs([]string{"--clear"})
		Expect(cmd.Execute()).To(Succeed())

		run, err := dotdir.NewManager().LoadLastRun(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(run).To(BeNil())
	})
})
