package integration_test

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/ninibe/linefeed"
	"github.com/ninibe/linefeed/linefeedc"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func getRaw(path string) (*http.Response, string) {
	resp, err := http.Get("http://" + serverAddr + path)
	Expect(err).ToNot(HaveOccurred())
	body, err := io.ReadAll(resp.Body)
	Expect(err).ToNot(HaveOccurred())
	Expect(resp.Body.Close()).To(Succeed())
	return resp, string(body)
}

var _ = Describe("Get Line", func() {
	client := linefeedc.NewClient(serverAddr)

	Context("When the line exists", func() {
		It("Should return the exact line bytes with the trailing LF", func() {
			resp, body := getRaw("/lines/0")
			Expect(resp.StatusCode).To(Equal(200))
			Expect(body).To(Equal("Linha: 0\n"))
		})

		It("Should serve the last line", func() {
			resp, body := getRaw(fmt.Sprintf("/lines/%d", totalLines-1))
			Expect(resp.StatusCode).To(Equal(200))
			Expect(body).To(Equal(fmt.Sprintf("Linha: %d\n", totalLines-1)))
		})

		It("Should have text/plain Content-Type", func() {
			resp, _ := getRaw("/lines/42")
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("text/plain"))
		})

		It("Should round trip through the client library", func() {
			line, err := client.GetLineString(4242)
			Expect(err).ToNot(HaveOccurred())
			Expect(line).To(Equal("Linha: 4242"))
		})
	})

	Context("When the line is beyond the end of the file", func() {
		It("Should respond with 413 status code", func() {
			resp, body := getRaw(fmt.Sprintf("/lines/%d", totalLines))
			Expect(resp.StatusCode).To(Equal(413))
			Expect(body).To(Equal("Requested line is beyond the end of the file.\n"))
		})

		It("Should surface ErrLineOutOfRange through the client library", func() {
			_, err := client.GetLine(uint64(totalLines))
			Expect(err).To(Equal(linefeed.ErrLineOutOfRange))
		})
	})

	Context("When the line number is not a positive integer", func() {
		It("Should respond with 400 status code", func() {
			for _, token := range []string{"-1", "abc", "1.5", "0x10"} {
				resp, body := getRaw("/lines/" + token)
				Expect(resp.StatusCode).To(Equal(400))
				Expect(body).To(Equal("Invalid line index. Must be a positive integer.\n"))
			}
		})
	})

	Context("When the path is unknown", func() {
		It("Should respond with 404 status code", func() {
			resp, body := getRaw("/healthz")
			Expect(resp.StatusCode).To(Equal(404))
			Expect(body).To(Equal("Not Found\n"))
		})
	})

	Context("When concatenating a run of lines", func() {
		It("Should byte-equal the same region of the data file", func() {
			var served bytes.Buffer
			for i := uint64(0); i < 100; i++ {
				line, err := client.GetLine(i)
				Expect(err).ToNot(HaveOccurred())
				served.Write(line)
			}

			f, err := os.Open(dataPath)
			Expect(err).ToNot(HaveOccurred())
			direct := make([]byte, served.Len())
			_, err = io.ReadFull(f, direct)
			Expect(err).ToNot(HaveOccurred())
			Expect(f.Close()).To(Succeed())

			Expect(served.Bytes()).To(Equal(direct))
		})
	})
})
