package csprcmder_test

import (
	"bytes"
	"fmt"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	csprcmder "github.com/papercomputeco/cspr/cmd/cspr"
	"github.com/papercomputeco/cspr/pkg/node/nodetest"
)

var _ = Describe("NewCsprCmd", func() {
	It("wires every top-level command", func() {
		cmd := csprcmder.NewCsprCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("events", "await", "watch", "node", "init", "config", "version"))
	})

	It("registers global flags", func() {
		cmd := csprcmder.NewCsprCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("applies node settings from config.toml", func() {
		srv := nodetest.NewServer()
		DeferCleanup(srv.Close)
		srv.REST("metrics", "chain_height 7\n")

		host, port := srv.HostPort()
		configDir := filepath.Join(GinkgoT().TempDir(), ".cspr")

		for _, kv := range [][2]string{
			{"node.host", host},
			{"node.rest_port", nodetestPort(port)},
		} {
			cmd := csprcmder.NewCsprCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs([]string{"config", "set", kv[0], kv[1], "--config-dir", configDir})
			Expect(cmd.Execute()).To(Succeed())
		}

		var out bytes.Buffer
		cmd := csprcmder.NewCsprCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"node", "metrics", "--config-dir", configDir})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(Equal("chain_height 7\n"))
	})

	It("lets flags override config.toml", func() {
		srv := nodetest.NewServer()
		DeferCleanup(srv.Close)
		srv.REST("metrics", "chain_height 8\n")

		configDir := filepath.Join(GinkgoT().TempDir(), ".cspr")
		cmd := csprcmder.NewCsprCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"config", "set", "node.rest_port", "1", "--config-dir", configDir})
		Expect(cmd.Execute()).To(Succeed())

		var out bytes.Buffer
		cmd = csprcmder.NewCsprCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"node", "metrics", "--config-dir", configDir}, srv.Args()...))
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(Equal("chain_height 8\n"))
	})
})

func nodetestPort(port uint) string {
	return fmt.Sprint(port)
}
