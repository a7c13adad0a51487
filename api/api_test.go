package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/api/mcp"
	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/metrics"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/session"
	"github.com/papercomputeco/lamdag/pkg/sse"
	"github.com/papercomputeco/lamdag/pkg/storage/inmemory"
	"github.com/papercomputeco/lamdag/pkg/term"
	"github.com/papercomputeco/lamdag/pkg/worker"
)

// Reductions that check a rendering run deep: head mode leaves the
// operands of the result unreduced.
const church = `
two  = \f x. f (f x)
add  = \m n f x. m f (n f x)
add two two g y
`

var _ = Describe("API Server", func() {
	var (
		server *Server
		engine *reduce.Engine
		pool   *worker.Pool
	)

	BeforeEach(func() {
		engine = reduce.NewEngine(term.NewStore())

		var err error
		pool, err = worker.NewPool(&worker.Config{Engine: engine, NumWorkers: 2})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		sess, err := session.New(session.Config{
			Engine: engine,
			Pool:   pool,
			Storer: inmemory.NewDriver(),
			Logger: logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		tools, err := mcp.NewServer(mcp.Config{Session: sess, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{
			ListenAddr:     ":0",
			MetricsHandler: metrics.Handler(metrics.NewRegistry(metrics.NewCollector(engine, pool))),
			MCPHandler:     tools.Handler(),
		}, sess, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	do := func(method, path string, body any) *http.Response {
		var r io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			r = bytes.NewReader(b)
		}

		req, err := http.NewRequest(method, path, r)
		Expect(err).NotTo(HaveOccurred())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(b, v)).To(Succeed())
	}

	Describe("NewServer", func() {
		It("requires a session", func() {
			_, err := NewServer(Config{}, nil, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("session is required")))
		})
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp := do(http.MethodGet, "/ping", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body string
			decode(resp, &body)
			Expect(body).To(Equal("pong"))
		})
	})

	Describe("POST /reduce", func() {
		It("reduces source text", func() {
			resp := do(http.MethodPost, "/reduce", session.Request{Source: church, Mode: "deep"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out session.Response
			decode(resp, &out)
			Expect(out.Status).To(Equal(reduce.Done))
			Expect(out.JobID).NotTo(BeEmpty())
			Expect(out.Rendered).To(Equal("g (g (g (g y)))"))
		})

		It("returns the partial result when the budget runs out", func() {
			resp := do(http.MethodPost, "/reduce", session.Request{Source: church, Budget: 2, Mode: "deep"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out session.Response
			decode(resp, &out)
			Expect(out.Status).To(Equal(reduce.BudgetExhausted))
			Expect(out.Steps).To(BeNumerically("<=", 2))
			Expect(out.Error).NotTo(BeEmpty())
		})

		It("rejects syntax errors", func() {
			resp := do(http.MethodPost, "/reduce", session.Request{Source: `\x.`})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var body ErrorResponse
			decode(resp, &body)
			Expect(body.Error).NotTo(BeEmpty())
		})

		It("rejects unknown modes", func() {
			resp := do(http.MethodPost, "/reduce", session.Request{Source: `x`, Mode: "weak"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects empty requests", func() {
			resp := do(http.MethodPost, "/reduce", session.Request{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects malformed bodies", func() {
			req, err := http.NewRequest(http.MethodPost, "/reduce", strings.NewReader("{"))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("answers 404 for unknown term names", func() {
			resp := do(http.MethodPost, "/reduce", session.Request{Name: "nope"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("terms", func() {
		It("stores, lists and reduces named terms", func() {
			resp := do(http.MethodPost, "/terms", SaveTermRequest{Name: "four", Source: church})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var saved TermResponse
			decode(resp, &saved)
			Expect(saved.Name).To(Equal("four"))
			Expect(saved.FreeNames).To(Equal([]string{"g", "y"}))
			Expect(saved.Source).NotTo(BeEmpty())

			resp = do(http.MethodPost, "/terms", SaveTermRequest{Name: "four", Source: church})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			resp = do(http.MethodGet, "/terms", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var list struct {
				Count int      `json:"count"`
				Names []string `json:"names"`
			}
			decode(resp, &list)
			Expect(list.Count).To(Equal(1))
			Expect(list.Names).To(Equal([]string{"four"}))

			resp = do(http.MethodPost, "/reduce", session.Request{Name: "four", Mode: "deep"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var out session.Response
			decode(resp, &out)
			Expect(out.Rendered).To(Equal("g (g (g (g y)))"))

			resp = do(http.MethodGet, "/terms/four", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var got TermResponse
			decode(resp, &got)
			Expect(got.Root).To(Equal(saved.Root))
			Expect(got.Best).To(Equal("g (g (g (g y)))"))
		})

		It("requires a name and a source", func() {
			resp := do(http.MethodPost, "/terms", SaveTermRequest{Name: "x"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("answers 404 for unknown terms", func() {
			resp := do(http.MethodGet, "/terms/missing", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))

			var body ErrorResponse
			decode(resp, &body)
			Expect(body.Error).To(ContainSubstring("missing"))
		})
	})

	Describe("GET /peek/:node", func() {
		It("reports the state of a reduced root", func() {
			resp := do(http.MethodPost, "/reduce", session.Request{Source: church, Mode: "deep"})
			var out session.Response
			decode(resp, &out)

			resp = do(http.MethodGet, "/peek/"+strconv.Itoa(int(out.Term.Root)), nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var p session.Peek
			decode(resp, &p)
			Expect(p.Head.State.String()).To(Equal("done"))
			Expect(p.Rendered).To(Equal("g (g (g (g y)))"))
		})

		It("rejects malformed ids", func() {
			Expect(do(http.MethodGet, "/peek/abc", nil).StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(do(http.MethodGet, "/peek/1?env=x", nil).StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("answers 404 for unknown nodes", func() {
			Expect(do(http.MethodGet, "/peek/99999", nil).StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("GET /stats", func() {
		It("reports runs and memo states", func() {
			do(http.MethodPost, "/reduce", session.Request{Source: church, Mode: "deep"})

			resp := do(http.MethodGet, "/stats", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var stats StatsResponse
			decode(resp, &stats)
			Expect(stats.Runs).To(Equal(uint64(1)))
			Expect(stats.Memo.Commits).To(BeNumerically(">", 0))
			Expect(stats.States).To(HaveKey("done"))
		})
	})

	Describe("POST /collect", func() {
		It("reclaims nodes of unsaved terms", func() {
			do(http.MethodPost, "/reduce", session.Request{Source: church, Mode: "deep"})

			resp := do(http.MethodPost, "/collect", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body map[string]int
			decode(resp, &body)
			Expect(body).To(HaveKey("reclaimed"))
		})
	})

	Describe("POST /reduce/stream", func() {
		It("sends a progress event per slice and then the result", func() {
			resp := do(http.MethodPost, "/reduce/stream", StreamRequest{
				Request: session.Request{Source: church, Mode: "deep"},
				Slice:   3,
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix(sse.ContentType))

			events, err := sse.NewReader(resp.Body).All()
			Expect(err).NotTo(HaveOccurred())
			Expect(len(events)).To(BeNumerically(">", 2))

			progress := events[:len(events)-1]
			for i, ev := range progress {
				Expect(ev.Type).To(Equal(sse.TypeProgress))
				Expect(ev.ID).To(Equal(strconv.Itoa(i + 1)))
			}

			var first session.Progress
			Expect(json.Unmarshal([]byte(progress[0].Data), &first)).To(Succeed())
			Expect(first.Status).To(Equal(reduce.BudgetExhausted))
			Expect(first.Steps).To(Equal(3))

			result := events[len(events)-1]
			Expect(result.Type).To(Equal(sse.TypeResult))
			var out session.Response
			Expect(json.Unmarshal([]byte(result.Data), &out)).To(Succeed())
			Expect(out.Status).To(Equal(reduce.Done))
			Expect(out.Rendered).To(Equal("g (g (g (g y)))"))
		})

		It("rejects requests that cannot run before streaming", func() {
			resp := do(http.MethodPost, "/reduce/stream", StreamRequest{Request: session.Request{Source: `(\x. x`}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			resp = do(http.MethodPost, "/reduce/stream", StreamRequest{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			resp = do(http.MethodPost, "/reduce/stream", StreamRequest{Request: session.Request{Name: "nope"}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("GET /metrics", func() {
		It("serves Prometheus metrics", func() {
			do(http.MethodPost, "/reduce", session.Request{Source: church, Mode: "deep"})

			resp := do(http.MethodGet, "/metrics", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			b, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(b)).To(ContainSubstring("lamdag_runs_total 1"))
			Expect(string(b)).To(ContainSubstring(`lamdag_jobs_total{outcome="completed"} 1`))
		})
	})
})

