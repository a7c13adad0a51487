package env_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/term"
)

var _ = Describe("Store", func() {
	var (
		envs  *env.Store
		nodes *term.Store
		x, y  term.NodeID
	)

	BeforeEach(func() {
		envs = env.NewStore()
		nodes = term.NewStore()
		b := term.NewBuilder(nodes)
		x = b.Var(0)
		y = b.Lam(x)
		Expect(b.Err()).NotTo(HaveOccurred())
	})

	It("starts with only the empty environment", func() {
		Expect(envs.Len()).To(Equal(1))
		Expect(envs.Depth(env.Empty)).To(Equal(0))
	})

	Describe("Extend", func() {
		It("hash-conses identical extensions", func() {
			e1, err := envs.Extend(env.Empty, y, env.Empty)
			Expect(err).NotTo(HaveOccurred())
			e2, err := envs.Extend(env.Empty, y, env.Empty)
			Expect(err).NotTo(HaveOccurred())
			Expect(e1).To(Equal(e2))
			Expect(envs.Len()).To(Equal(2))
		})

		It("distinguishes the environment a value is bound under", func() {
			e1, _ := envs.Extend(env.Empty, y, env.Empty)
			e2, _ := envs.Extend(env.Empty, y, e1)
			Expect(e2).NotTo(Equal(e1))
			Expect(envs.Depth(e2)).To(Equal(1))
		})

		It("rejects unknown parents", func() {
			_, err := envs.Extend(99, y, env.Empty)
			Expect(errors.Is(err, env.ErrInvalidEnv)).To(BeTrue())
		})
	})

	Describe("Lookup", func() {
		It("walks exactly index links", func() {
			e1, _ := envs.Extend(env.Empty, x, env.Empty)
			e2, _ := envs.Extend(e1, y, env.Empty)

			b, frame, err := envs.Lookup(e2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(env.Thunk(y, env.Empty)))
			Expect(frame).To(Equal(e2))

			b, frame, err = envs.Lookup(e2, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Node).To(Equal(x))
			Expect(frame).To(Equal(e1))

			parent, err := envs.Parent(e2)
			Expect(err).NotTo(HaveOccurred())
			Expect(parent).To(Equal(e1))
		})

		It("reports indices past the last frame as unbound", func() {
			e1, _ := envs.Extend(env.Empty, x, env.Empty)

			_, _, err := envs.Lookup(e1, 3)
			Expect(errors.Is(err, env.ErrUnbound)).To(BeTrue())

			var unbound env.UnboundError
			Expect(errors.As(err, &unbound)).To(BeTrue())
			Expect(unbound.Depth).To(Equal(1))
			Expect(unbound.Free()).To(Equal(2))

			_, _, err = envs.Lookup(env.Empty, 0)
			Expect(errors.Is(err, env.ErrUnbound)).To(BeTrue())
		})

		It("returns free binders", func() {
			e1, err := envs.Bind(env.Empty, 4)
			Expect(err).NotTo(HaveOccurred())
			again, _ := envs.Bind(env.Empty, 4)
			Expect(again).To(Equal(e1))

			b, _, err := envs.Lookup(e1, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Free).To(BeTrue())
			Expect(b.Level).To(Equal(4))
		})
	})

	It("lists the nodes held by thunks", func() {
		e1, _ := envs.Extend(env.Empty, x, env.Empty)
		e2, _ := envs.Bind(e1, 0)
		_, _ = envs.Extend(e2, y, e1)

		Expect(envs.Nodes()).To(ConsistOf(x, y))
	})
})
