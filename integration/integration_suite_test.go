package integration_test

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/http2"

	"github.com/ninibe/linefeed"
	"github.com/ninibe/linefeed/transport"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"testing"
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Integration Suite")
}

const (
	serverAddr = "localhost:12683"
	totalLines = 10000
)

var (
	dataDir  string
	dataPath string
	lf       *linefeed.LineFile
)

var _ = BeforeSuite(func(done Done) {
	defer close(done)

	var err error
	dataDir, err = os.MkdirTemp("", "")
	Expect(err).ToNot(HaveOccurred())

	dataPath = filepath.Join(dataDir, "dummy.txt")
	f, err := os.Create(dataPath)
	Expect(err).ToNot(HaveOccurred())
	for i := 0; i < totalLines; i++ {
		_, err = fmt.Fprintf(f, "Linha: %d\n", i)
		Expect(err).ToNot(HaveOccurred())
	}
	Expect(f.Close()).To(Succeed())

	lines, rebuilt, err := linefeed.PrepareIndex(dataPath)
	Expect(err).ToNot(HaveOccurred())
	Expect(lines).To(Equal(uint64(totalLines)))
	Expect(rebuilt).To(BeTrue())

	lf, err = linefeed.Open(dataPath)
	Expect(err).ToNot(HaveOccurred())

	var server http.Server
	server.Addr = serverAddr
	server.Handler = transport.NewHTTPTransport(lf)
	err = http2.ConfigureServer(&server, nil)
	Expect(err).ToNot(HaveOccurred())

	go func() {
		defer GinkgoRecover()
		err := server.ListenAndServe()
		Expect(err).ToNot(HaveOccurred())
	}()

	for {
		_, err := http.Get("http://" + serverAddr + "/lines/0")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
}, 60)

var _ = AfterSuite(func() {
	Expect(lf.Close()).To(Succeed())
	Expect(os.RemoveAll(dataDir)).To(Succeed())
})
