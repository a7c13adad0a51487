package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/dotdir"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		var err error
		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	// isolate moves into an empty working directory with an empty HOME.
	isolate := func() string {
		dir := filepath.Join(tmpDir, "work")
		Expect(os.Mkdir(dir, 0o755)).To(Succeed())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(func() { _ = os.Chdir(origDir) })

		GinkgoT().Setenv("HOME", dir)
		return dir
	}

	Describe("Target", func() {
		It("creates the override directory", func() {
			dir := filepath.Join(tmpDir, "override")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))
			Expect(dir).To(BeADirectory())
		})

		It("prefers the override over a local .lamdag dir", func() {
			work := isolate()
			Expect(os.Mkdir(filepath.Join(work, ".lamdag"), 0o755)).To(Succeed())

			override := filepath.Join(tmpDir, "override")
			Expect(m.Target(override)).To(Equal(override))
		})

		It("finds a local .lamdag dir", func() {
			work := isolate()
			local := filepath.Join(work, ".lamdag")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())

			Expect(m.Target("")).To(Equal(local))
		})

		It("returns empty when nothing exists", func() {
			isolate()
			Expect(m.Target("")).To(BeEmpty())
		})
	})

	Describe("Ensure", func() {
		It("creates the home directory when nothing exists", func() {
			home := isolate()
			dir, err := m.Ensure("")
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(filepath.Join(home, ".lamdag")))
			Expect(dir).To(BeADirectory())
		})
	})

	Describe("LastRun", func() {
		It("is nil before anything is saved", func() {
			Expect(m.LoadLastRun(tmpDir)).To(BeNil())
		})

		It("saves, loads and clears", func() {
			run := &dotdir.LastRun{
				RunID:  "r-1",
				Source: `(\x. x) y`,
				Mode:   "head",
				Steps:  1,
				Status: "done",
				Result: "y",
				At:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			}
			Expect(m.SaveLastRun(run, tmpDir)).To(Succeed())

			loaded, err := m.LoadLastRun(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(run))

			Expect(m.ClearLastRun(tmpDir)).To(Succeed())
			Expect(m.LoadLastRun(tmpDir)).To(BeNil())
			Expect(m.ClearLastRun(tmpDir)).To(Succeed())
		})

		It("rejects a nil run", func() {
			Expect(m.SaveLastRun(nil, tmpDir)).To(MatchError(ContainSubstring("nil run")))
		})

		It("reports corrupt records", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "last_run.json"), []byte("{"), 0o600)).To(Succeed())
			_, err := m.LoadLastRun(tmpDir)
			Expect(err).To(MatchError(ContainSubstring("parsing last run")))
		})
	})
})
