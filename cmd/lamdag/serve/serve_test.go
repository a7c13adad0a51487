package servecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/pkg/config"
	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/session"
)

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer l.Close()
	return l.Addr().String()
}

var _ = Describe("serve", func() {
	It("serves reductions, metrics and MCP over one engine", func() {
		cfg := config.NewDefaultConfig()
		cfg.API.Listen = freeAddr()
		cfg.Storage.Driver = "memory"
		cfg.Events.Provider = "none"
		cfg.Workers.Count = 2

		svc, err := newServices(context.Background(), cfg, GinkgoT().TempDir(), false, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(svc.close)

		go func() {
			defer GinkgoRecover()
			_ = svc.api.Run()
		}()

		base := "http://" + cfg.API.Listen
		Eventually(func() error {
			resp, err := http.Get(base + "/ping")
			if err == nil {
				resp.Body.Close()
			}
			return err
		}, 5*time.Second, 50*time.Millisecond).Should(Succeed())

		body, err := json.Marshal(session.Request{Source: `(\x. x) y`})
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(base+"/reduce", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var out session.Response
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		Expect(out.Rendered).To(Equal("y"))
		Expect(out.JobID).NotTo(BeEmpty())

		resp, err = http.Get(base + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		text, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(text)).To(ContainSubstring("lamdag_runs_total 1"))

		mcpReq := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`
		req, err := http.NewRequest(http.MethodPost, base+"/mcp", strings.NewReader(mcpReq))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		resp, err = http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("rejects an unknown storage driver", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = "tape"

		_, err := newServices(context.Background(), cfg, GinkgoT().TempDir(), false, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("also logs JSON to --log-file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "serve.log")
		cmd := &cobra.Command{}
		cmd.Flags().Bool("debug", false, "")
		cmd.SetOut(io.Discard)

		c := &ServeCommander{logFile: path}
		log, closeLog, err := c.newLogger(cmd, config.NewDefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		log.Info("hello", "k", "v")
		closeLog()

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"hello"`))
	})
})
