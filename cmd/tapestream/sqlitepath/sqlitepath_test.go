package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var homeDir, cwd string

	BeforeEach(func() {
		homeDir = GinkgoT().TempDir()
		cwd = GinkgoT().TempDir()

		GinkgoT().Setenv("HOME", homeDir)
		GinkgoT().Setenv("XDG_DATA_HOME", "")
		GinkgoT().Setenv("TAPESTREAM_SQLITE", "")

		origCwd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(cwd)).To(Succeed())
		DeferCleanup(func() { _ = os.Chdir(origCwd) })
	})

	touch := func(path string) {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte("test"), 0o600)).To(Succeed())
	}

	It("returns the override unchanged", func() {
		GinkgoT().Setenv("TAPESTREAM_SQLITE", "/tmp/env.db")
		path, err := ResolveSQLitePath("/tmp/flag.db")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/flag.db"))
	})

	It("prefers TAPESTREAM_SQLITE when set", func() {
		GinkgoT().Setenv("TAPESTREAM_SQLITE", "/tmp/custom.db")

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("prefers a database in the working directory over the home directory", func() {
		touch(filepath.Join(cwd, ".tapestream", "tapestream.db"))
		touch(filepath.Join(homeDir, ".tapestream", "tapestream.db"))

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(".tapestream", "tapestream.db")))
	})

	It("resolves ~/.tapestream/tapestream.db when present", func() {
		dbPath := filepath.Join(homeDir, ".tapestream", "tapestream.db")
		touch(dbPath)

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(dbPath))
	})

	It("errors when nothing is found", func() {
		_, err := ResolveSQLitePath("")
		Expect(err).To(MatchError(ContainSubstring("--sqlite")))
	})
})

var _ = Describe("DefaultPath", func() {
	It("places the database in the config directory", func() {
		dir := GinkgoT().TempDir()
		path, err := DefaultPath(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(path)).To(Equal("tapestream.db"))
		Expect(filepath.Dir(path)).To(BeADirectory())
	})
})
