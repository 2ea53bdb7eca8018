package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tapestream/pkg/credentials"
)

var _ = Describe("Store", func() {
	var (
		dir   string
		store *credentials.Store
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		var err error
		store, err = credentials.NewStore(dir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("keeps credentials.toml in the target directory", func() {
		Expect(store.Path()).To(Equal(filepath.Join(dir, "credentials.toml")))
	})

	It("loads nothing when the file is missing", func() {
		f, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Providers).To(BeEmpty())
	})

	It("reads a hand-written file", func() {
		data := "version = 0\n\n[providers.openai]\napi_key = \"sk-test\"\n"
		Expect(os.WriteFile(store.Path(), []byte(data), 0o600)).To(Succeed())

		key, err := store.Key("openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("sk-test"))
	})

	It("fails on malformed TOML", func() {
		Expect(os.WriteFile(store.Path(), []byte("not valid [[["), 0o600)).To(Succeed())
		_, err := store.Load()
		Expect(err).To(HaveOccurred())
	})

	It("stores keys with restricted permissions", func() {
		Expect(store.SetKey("anthropic", "  sk-ant  ")).To(Succeed())

		info, err := os.Stat(store.Path())
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

		key, err := store.Key("anthropic")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("sk-ant"))
	})

	It("replaces and removes keys without touching other providers", func() {
		Expect(store.SetKey("openai", "one")).To(Succeed())
		Expect(store.SetKey("anthropic", "two")).To(Succeed())
		Expect(store.SetKey("openai", "three")).To(Succeed())

		Expect(store.Providers()).To(Equal([]string{"anthropic", "openai"}))
		Expect(store.Key("openai")).To(Equal("three"))

		Expect(store.RemoveKey("openai")).To(Succeed())
		Expect(store.RemoveKey("openai")).To(Succeed())
		Expect(store.Providers()).To(Equal([]string{"anthropic"}))
	})

	DescribeTable("rejects bad keys",
		func(provider, key string) {
			Expect(store.SetKey(provider, key)).NotTo(Succeed())
		},
		Entry("unsupported provider", "agent", "k"),
		Entry("blank key", "openai", "   "),
	)

	Describe("Resolve", func() {
		It("prefers the environment", func() {
			Expect(store.SetKey("openai", "stored")).To(Succeed())
			GinkgoT().Setenv("OPENAI_API_KEY", "from-env")

			Expect(store.Resolve("openai")).To(Equal("from-env"))
		})

		It("falls back to the stored key", func() {
			Expect(store.SetKey("anthropic", "stored")).To(Succeed())
			GinkgoT().Setenv("ANTHROPIC_API_KEY", "")

			Expect(store.Resolve("anthropic")).To(Equal("stored"))
		})

		It("resolves nothing for the agent provider", func() {
			Expect(store.Resolve("agent")).To(BeEmpty())
		})
	})
})

var _ = Describe("EnvVar", func() {
	It("names the provider variables", func() {
		Expect(credentials.EnvVar("openai")).To(Equal("OPENAI_API_KEY"))
		Expect(credentials.EnvVar("anthropic")).To(Equal("ANTHROPIC_API_KEY"))
		Expect(credentials.EnvVar("agent")).To(BeEmpty())
	})
})
