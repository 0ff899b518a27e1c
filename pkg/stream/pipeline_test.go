package stream_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/panic80/cb-sub000/pkg/chat"
	"github.com/panic80/cb-sub000/pkg/stream"
)

// sseServer streams the given frames, optionally split into byte chunks of
// the given size so frames arrive broken across network reads.
func sseServer(frames []string, chunkSize int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		var payload string
		for _, frame := range frames {
			payload += fmt.Sprintf("data: %s\n\n", frame)
		}

		if chunkSize <= 0 {
			fmt.Fprint(w, payload)
			flusher.Flush()
			return
		}

		raw := []byte(payload)
		for i := 0; i < len(raw); i += chunkSize {
			end := i + chunkSize
			if end > len(raw) {
				end = len(raw)
			}
			w.Write(raw[i:end])
			flusher.Flush()
		}
	}))
}

func runPipeline(url string) (*stream.Assembler, []chat.Message) {
	var snapshots []chat.Message
	asm := stream.NewAssembler("msg-under-test", func(m chat.Message) {
		snapshots = append(snapshots, m)
	})

	client := stream.NewClient(url)
	events, err := client.Stream(context.Background(), stream.ChatRequest{Message: "q"})
	Expect(err).ToNot(HaveOccurred())

	for ev := range events {
		asm.Apply(ev)
	}
	return asm, snapshots
}

var _ = Describe("Stream pipeline", func() {
	fullAnswer := []string{
		`{"type":"retrieval_start"}`,
		`{"type":"sources","sources":[{"content":"Rate is $25.65","source":"NJC"}]}`,
		`{"type":"retrieval_complete"}`,
		`{"type":"generation_start"}`,
		`{"type":"token","content":"The "}`,
		`{"type":"token","content":"lunch "}`,
		`{"type":"token","content":"rate is $25.65."}`,
		`{"type":"metadata","conversation_id":"abc123","follow_up_questions":[{"question":"And dinner?"}]}`,
		`{"type":"complete"}`,
		`[DONE]`,
	}

	It("assembles a complete answer end to end", func() {
		server := sseServer(fullAnswer, 0)
		defer server.Close()

		asm, snapshots := runPipeline(server.URL)

		Expect(asm.Phase()).To(Equal(stream.PhaseComplete))
		final, ok := asm.Final()
		Expect(ok).To(BeTrue())
		Expect(final.Content).To(Equal("The lunch rate is $25.65."))
		Expect(final.Sources).To(HaveLen(1))
		Expect(final.Sources[0].Reference).To(Equal("NJC"))
		Expect(final.FollowUps).To(HaveLen(1))
		Expect(final.FollowUps[0].ID).To(Equal("msg-under-test-fu-0"))
		Expect(asm.ConversationID()).To(Equal("abc123"))

		Expect(len(snapshots)).To(Equal(3))
		Expect(snapshots[2].Content).To(Equal(final.Content))
	})

	It("produces the identical message for any chunk size", func() {
		reference := sseServer(fullAnswer, 0)
		refAsm, _ := runPipeline(reference.URL)
		reference.Close()
		refFinal, _ := refAsm.Final()

		for _, chunkSize := range []int{1, 2, 3, 7, 16} {
			server := sseServer(fullAnswer, chunkSize)
			asm, _ := runPipeline(server.URL)
			server.Close()

			final, ok := asm.Final()
			Expect(ok).To(BeTrue(), "chunk size %d", chunkSize)
			Expect(final.Content).To(Equal(refFinal.Content), "chunk size %d", chunkSize)
			Expect(final.Sources).To(Equal(refFinal.Sources), "chunk size %d", chunkSize)
		}
	})

	It("survives one malformed frame without changing the outcome", func() {
		withBadFrame := append([]string{}, fullAnswer[:4]...)
		withBadFrame = append(withBadFrame, `{"type":"token","content":`)
		withBadFrame = append(withBadFrame, fullAnswer[4:]...)

		server := sseServer(withBadFrame, 0)
		defer server.Close()

		asm, _ := runPipeline(server.URL)
		final, ok := asm.Final()
		Expect(ok).To(BeTrue())
		Expect(final.Content).To(Equal("The lunch rate is $25.65."))
	})

	It("replaces partial output with one error message on a server error", func() {
		server := sseServer([]string{
			`{"type":"token","content":"partial "}`,
			`{"type":"token","content":"answer"}`,
			`{"type":"error","message":"boom"}`,
		}, 0)
		defer server.Close()

		asm, _ := runPipeline(server.URL)

		Expect(asm.Phase()).To(Equal(stream.PhaseFailed))
		final, ok := asm.Final()
		Expect(ok).To(BeTrue())
		Expect(final.Content).To(ContainSubstring("boom"))
		Expect(final.Content).ToNot(ContainSubstring("partial"))
	})

	It("handles multi-byte characters split across reads", func() {
		frames := []string{
			`{"type":"token","content":"Où "}`,
			`{"type":"token","content":"est le café? 🚀"}`,
			`{"type":"complete"}`,
		}

		server := sseServer(frames, 1)
		defer server.Close()

		asm, _ := runPipeline(server.URL)
		final, ok := asm.Final()
		Expect(ok).To(BeTrue())
		Expect(final.Content).To(Equal("Où est le café? 🚀"))
	})
})
