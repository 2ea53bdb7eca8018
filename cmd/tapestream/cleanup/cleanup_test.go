package cleanupcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	cleanupcmder "github.com/papercomputeco/tapestream/cmd/tapestream/cleanup"
	"github.com/papercomputeco/tapestream/pkg/storage"
	"github.com/papercomputeco/tapestream/pkg/storage/sqlite"
)

func execute(args ...string) (string, error) {
	root := &cobra.Command{Use: "tapestream", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolP("debug", "d", false, "")
	root.PersistentFlags().String("config-dir", "", "")
	root.AddCommand(cleanupcmder.NewCleanupCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append([]string{"cleanup"}, args...))
	err := root.Execute()
	return out.String(), err
}

var _ = Describe("cleanup", func() {
	var (
		ctx    context.Context
		dbPath string
		dir    string
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		dbPath = filepath.Join(GinkgoT().TempDir(), "tapestream.db")

		d, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		past := time.Now().Add(-time.Hour)
		future := time.Now().Add(time.Hour)
		for _, e := range []struct {
			dataType string
			expires  *time.Time
		}{
			{"stale", &past},
			{"fresh", &future},
			{"forever", nil},
		} {
			Expect(d.UpsertAgentData(ctx, &storage.AgentData{
				ConversationID: "c1",
				AgentID:        "a",
				DataType:       e.dataType,
				Data:           json.RawMessage(`{"v":1}`),
				ExpiresAt:      e.expires,
			})).To(Succeed())
		}
	})

	It("removes only expired entries", func() {
		out, err := execute("--config-dir", dir, "--sqlite", dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Removing expired agent data"))
		Expect(out).To(ContainSubstring("deleted"))

		d, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		_, err = d.GetAgentData(ctx, "c1", "a", "stale")
		Expect(storage.IsNotFound(err)).To(BeTrue())

		_, err = d.GetAgentData(ctx, "c1", "a", "fresh")
		Expect(err).NotTo(HaveOccurred())
		_, err = d.GetAgentData(ctx, "c1", "a", "forever")
		Expect(err).NotTo(HaveOccurred())
	})

	It("can run again once nothing is left to remove", func() {
		_, err := execute("--config-dir", dir, "--sqlite", dbPath)
		Expect(err).NotTo(HaveOccurred())

		_, err = execute("--config-dir", dir, "--sqlite", dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("fails when no database can be found", func() {
		GinkgoT().Setenv("HOME", GinkgoT().TempDir())
		GinkgoT().Setenv("TAPESTREAM_SQLITE", "")
		GinkgoT().Setenv("XDG_DATA_HOME", "")
		origCwd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(GinkgoT().TempDir())).To(Succeed())
		DeferCleanup(func() { _ = os.Chdir(origCwd) })

		_, err = execute("--config-dir", dir)
		Expect(err).To(MatchError(ContainSubstring("could not find tapestream SQLite database")))
	})
})
