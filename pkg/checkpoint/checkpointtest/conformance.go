// Package checkpointtest holds the behaviour every checkpoint.Store must
// share, declared as ginkgo specs so each driver's suite can run it.
package checkpointtest

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cspr/pkg/checkpoint"
)

// DescribeStore declares the shared store specs. newStore is called before
// each spec and must return an empty store.
func DescribeStore(name string, newStore func(ctx context.Context) checkpoint.Store) bool {
	return Describe(name+" conformance", func() {
		var (
			ctx   context.Context
			store checkpoint.Store
		)

		BeforeEach(func() {
			ctx = context.Background()
			store = nil
			store = newStore(ctx)
		})

		AfterEach(func() {
			if store != nil {
				Expect(store.Close()).To(Succeed())
			}
		})

		It("reports missing checkpoints as not found", func() {
			_, err := store.Load(ctx, "localhost:9999/main")
			Expect(checkpoint.IsNotFound(err)).To(BeTrue())

			var nf checkpoint.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nf))
		})

		It("saves and loads a checkpoint", func() {
			Expect(store.Save(ctx, "localhost:9999/main", 41)).To(Succeed())

			id, err := store.Load(ctx, "localhost:9999/main")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(uint64(41)))
		})

		It("moves checkpoints forward only", func() {
			key := "localhost:9999/sigs"
			Expect(store.Save(ctx, key, 10)).To(Succeed())
			Expect(store.Save(ctx, key, 7)).To(Succeed())

			id, err := store.Load(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(uint64(10)))

			Expect(store.Save(ctx, key, 12)).To(Succeed())
			id, err = store.Load(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(uint64(12)))
		})

		It("lists checkpoints ordered by key", func() {
			Expect(store.Save(ctx, "b:9999/main", 2)).To(Succeed())
			Expect(store.Save(ctx, "a:9999/main", 1)).To(Succeed())

			list, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].Key).To(Equal("a:9999/main"))
			Expect(list[0].EventID).To(Equal(uint64(1)))
			Expect(list[1].Key).To(Equal("b:9999/main"))
			Expect(list[1].UpdatedAt).NotTo(BeZero())
		})

		It("resumes one past the stored id", func() {
			from, err := checkpoint.ResumeFrom(ctx, store, "x:9999/main")
			Expect(err).NotTo(HaveOccurred())
			Expect(from).To(BeZero())

			Expect(store.Save(ctx, "x:9999/main", 99)).To(Succeed())
			from, err = checkpoint.ResumeFrom(ctx, store, "x:9999/main")
			Expect(err).NotTo(HaveOccurred())
			Expect(from).To(Equal(uint64(100)))
		})
	})
}
