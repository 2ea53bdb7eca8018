package versioncmder_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	versioncmder "github.com/papercomputeco/tapestream/cmd/version"
	"github.com/papercomputeco/tapestream/pkg/utils"
)

var _ = Describe("version", func() {
	It("prints the build information", func() {
		cmd := versioncmder.NewVersionCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(nil)

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring(utils.Version))
		Expect(out.String()).To(ContainSubstring(utils.Sha))
	})

	It("prints JSON with --json", func() {
		cmd := versioncmder.NewVersionCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--json"})

		Expect(cmd.Execute()).To(Succeed())

		var got map[string]string
		Expect(json.Unmarshal(out.Bytes(), &got)).To(Succeed())
		Expect(got).To(HaveKeyWithValue("version", utils.Version))
		Expect(got).To(HaveKeyWithValue("sha", utils.Sha))
		Expect(got).To(HaveKeyWithValue("buildtime", utils.Buildtime))
	})
})
