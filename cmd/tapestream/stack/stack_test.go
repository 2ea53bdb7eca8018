package stack_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tapestream/cmd/tapestream/stack"
	"github.com/papercomputeco/tapestream/pkg/agent"
	"github.com/papercomputeco/tapestream/pkg/config"
	"github.com/papercomputeco/tapestream/pkg/credentials"
	"github.com/papercomputeco/tapestream/pkg/logger"
	"github.com/papercomputeco/tapestream/pkg/storage"
)

var _ = Describe("Stack", func() {
	var v *viper.Viper

	BeforeEach(func() {
		var err error
		v, err = config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("SettingsFromViper", func() {
		It("reads the defaults", func() {
			s, err := stack.SettingsFromViper(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.FlushDelay).To(Equal(2 * time.Second))
			Expect(s.CleanupInterval).To(Equal(5 * time.Minute))
			Expect(s.Workers).To(BeEquivalentTo(3))
			Expect(s.QueueSize).To(BeEquivalentTo(256))
			Expect(s.EventStream.ProviderType).To(Equal("nop"))
			Expect(s.Storage.SQLitePath).To(BeEmpty())
		})

		It("rejects a malformed duration", func() {
			v.Set("persistence.flush_delay", "soon")
			_, err := stack.SettingsFromViper(v)
			Expect(err).To(MatchError(ContainSubstring("persistence.flush_delay")))
		})
	})

	Describe("Open", func() {
		It("wires an in-memory runtime", func() {
			ctx := context.Background()
			s, err := stack.SettingsFromViper(v)
			Expect(err).NotTo(HaveOccurred())

			st, err := stack.Open(ctx, s, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			st.Persister.OpenStream("c1")
			st.Persister.SaveEvent(ctx, agent.ContentChunk{Agent: "a", Content: "hello"}, "c1")
			Expect(st.Close()).To(Succeed())

			msgs, err := st.Stores.Driver.ListMessages(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Role).To(Equal(storage.RoleAssistant))
			Expect(msgs[0].Content).To(Equal("hello"))
		})

		It("fails on an unknown event stream provider", func() {
			s, err := stack.SettingsFromViper(v)
			Expect(err).NotTo(HaveOccurred())
			s.EventStream.ProviderType = "nats"

			_, err = stack.Open(context.Background(), s, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("creating event publisher")))
		})

		It("stops the janitor with its context", func() {
			s, err := stack.SettingsFromViper(v)
			Expect(err).NotTo(HaveOccurred())
			st, err := stack.Open(context.Background(), s, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer st.Close()

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				st.RunJanitor(ctx)
			}()
			cancel()
			Eventually(done).Should(BeClosed())
		})
	})

	Describe("ProxyConfig", func() {
		It("reads the upstream settings without a key for the agent provider", func() {
			cfg, err := stack.ProxyConfig(v, GinkgoT().TempDir())
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Provider).To(Equal("agent"))
			Expect(cfg.UpstreamURL).To(Equal("http://localhost:9000"))
			Expect(cfg.DefaultAgent).To(Equal("assistant"))
			Expect(cfg.APIKey).To(BeEmpty())
		})

		It("resolves the stored key for anthropic", func() {
			dir := GinkgoT().TempDir()
			GinkgoT().Setenv("ANTHROPIC_API_KEY", "")
			store, err := credentials.NewStore(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.SetKey("anthropic", "sk-ant")).To(Succeed())

			v.Set("proxy.provider", "anthropic")
			cfg, err := stack.ProxyConfig(v, dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.APIKey).To(Equal("sk-ant"))
		})
	})

	Describe("NewLogger", func() {
		It("also writes JSON lines to the log file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "serve.log")
			l, closeLog, err := stack.NewLogger(false, path)
			Expect(err).NotTo(HaveOccurred())

			l.Info("hello", "conversation_id", "c1")
			Expect(closeLog()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"msg":"hello"`))
			Expect(string(data)).To(ContainSubstring(`"conversation_id":"c1"`))
		})
	})
})
