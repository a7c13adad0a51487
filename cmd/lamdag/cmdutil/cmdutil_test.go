package cmdutil_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/cmd/lamdag/cmdutil"
	"github.com/papercomputeco/lamdag/pkg/config"
	"github.com/papercomputeco/lamdag/pkg/eventstream/kafka"
	"github.com/papercomputeco/lamdag/pkg/eventstream/nop"
	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/storage/inmemory"
	"github.com/papercomputeco/lamdag/pkg/storage/sqlite"
)

var _ = Describe("LoadConfig", func() {
	var dir string

	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String("config-dir", dir, "")
		var budget int
		var mode string
		config.AddIntFlag(cmd, config.Flags, config.FlagBudget, &budget)
		config.AddStringFlag(cmd, config.Flags, config.FlagMode, &mode)
		return cmd
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", GinkgoT().TempDir())
	})

	It("applies the precedence flag over env over file", func() {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfger.SetConfigValue("engine.budget", "10")).To(Succeed())
		Expect(cfger.SetConfigValue("engine.mode", "deep")).To(Succeed())

		cmd := newCmd()
		cfg, err := cmdutil.LoadConfig(cmd, config.FlagBudget, config.FlagMode)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.Budget).To(Equal(10))
		Expect(cfg.Engine.Mode).To(Equal("deep"))

		GinkgoT().Setenv("LAMDAG_ENGINE_BUDGET", "20")
		cfg, err = cmdutil.LoadConfig(newCmd(), config.FlagBudget)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.Budget).To(Equal(20))

		cmd = newCmd()
		Expect(cmd.Flags().Set("budget", "30")).To(Succeed())
		cfg, err = cmdutil.LoadConfig(cmd, config.FlagBudget)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.Budget).To(Equal(30))
	})
})

var _ = Describe("NewEngine", func() {
	It("follows the engine section", func() {
		cfg := config.NewDefaultConfig()
		cfg.Engine.Mode = "deep"

		engine, err := cmdutil.NewEngine(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(engine.Mode()).To(Equal(reduce.Deep))
	})

	It("rejects unknown modes", func() {
		cfg := config.NewDefaultConfig()
		cfg.Engine.Mode = "sideways"

		_, err := cmdutil.NewEngine(cfg, logger.Nop())
		Expect(err).To(MatchError(reduce.ErrUnknownMode))
	})
})

var _ = Describe("NewStorage", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("defaults to memory", func() {
		driver, err := cmdutil.NewStorage(ctx, config.NewDefaultConfig(), "", logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("creates the SQLite database in the config dir", func() {
		dir := GinkgoT().TempDir()
		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = "sqlite"

		driver, err := cmdutil.NewStorage(ctx, cfg, dir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(driver.Close)
		Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))

		_, err = os.Stat(filepath.Join(dir, cmdutil.DefaultSQLiteFile))
		Expect(err).NotTo(HaveOccurred())
	})

	It("needs a DSN for postgres", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = "postgres"

		_, err := cmdutil.NewStorage(ctx, cfg, "", logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("postgres_dsn")))
	})

	It("rejects unknown drivers", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = "floppy"

		_, err := cmdutil.NewStorage(ctx, cfg, "", logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewPublisher", func() {
	It("defaults to the no-op publisher", func() {
		p, err := cmdutil.NewPublisher(config.NewDefaultConfig(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a kafka publisher", func() {
		cfg := config.NewDefaultConfig()
		cfg.Events.Provider = "kafka"
		cfg.Events.Brokers = []string{"localhost:9092"}

		p, err := cmdutil.NewPublisher(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)
		Expect(p).To(BeAssignableToTypeOf(&kafka.Publisher{}))
	})

	It("fails without brokers", func() {
		cfg := config.NewDefaultConfig()
		cfg.Events.Provider = "kafka"

		_, err := cmdutil.NewPublisher(cfg, logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ReadSource", func() {
	It("prefers the expression", func() {
		src, label, err := cmdutil.ReadSource(nil, `\x. x`)
		Expect(err).NotTo(HaveOccurred())
		Expect(src).To(Equal(`\x. x`))
		Expect(label).To(Equal("-e"))
	})

	It("reads a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "id.lam")
		Expect(os.WriteFile(path, []byte(`\x. x`), 0o600)).To(Succeed())

		src, label, err := cmdutil.ReadSource([]string{path}, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(src).To(Equal(`\x. x`))
		Expect(label).To(Equal(path))
	})

	It("refuses both or neither", func() {
		_, _, err := cmdutil.ReadSource([]string{"a.lam"}, "x")
		Expect(err).To(HaveOccurred())
		_, _, err = cmdutil.ReadSource(nil, "")
		Expect(err).To(HaveOccurred())
	})
})
