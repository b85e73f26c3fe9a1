package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zerouihq/relay/pkg/llm"
	"github.com/zerouihq/relay/pkg/logger"
)

const testDefaultModel = "phi3:mini-128k"

// newTestRelay creates a Relay pointed at the given upstream URL.
func newTestRelay(upstreamURL string) *Relay {
	r, err := New(Config{
		ListenAddr:   ":0",
		UpstreamURL:  upstreamURL,
		DefaultModel: testDefaultModel,
	}, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return r
}

// makeChatBody builds a JSON-encoded chat request body.
func makeChatBody(model string, messages []llm.Message, stream *bool) []byte {
	body, err := json.Marshal(llm.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
	})
	Expect(err).NotTo(HaveOccurred())
	return body
}

// postChat sends the body to /chat through the fiber test harness and
// returns the response.
func postChat(r *Relay, body []byte) *http.Response {
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.server.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

// bodyLines reads the full response body and splits it into non-empty lines.
func bodyLines(resp *http.Response) []string {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())

	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// upstreamCapture records the payload the relay forwarded upstream.
type upstreamCapture struct {
	mu      sync.Mutex
	payload llm.ChatPayload
}

func (u *upstreamCapture) set(p llm.ChatPayload) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.payload = p
}

func (u *upstreamCapture) get() llm.ChatPayload {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.payload
}

// ndjsonUpstream returns an httptest server that records the forwarded
// payload and answers with the given NDJSON lines.
func ndjsonUpstream(capture *upstreamCapture, lines ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var payload llm.ChatPayload
		Expect(json.NewDecoder(req.Body).Decode(&payload)).To(Succeed())
		if capture != nil {
			capture.set(payload)
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, ok := w.(http.Flusher)
		Expect(ok).To(BeTrue())

		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
}

var _ = Describe("Chat Streaming Relay", func() {
	var (
		r        *Relay
		upstream *httptest.Server
	)

	AfterEach(func() {
		if r != nil {
			Expect(r.Shutdown()).To(Succeed())
			r = nil
		}
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	Context("when upstream streams normal completion chunks", func() {
		chunk1 := `{"model":"llama3","message":{"role":"assistant","content":"Hello"},"done":false}`
		chunk2 := `{"model":"llama3","message":{"role":"assistant","content":" world"},"done":false}`
		final := `{"model":"llama3","message":{"role":"assistant","content":""},"done":true}`

		BeforeEach(func() {
			upstream = ndjsonUpstream(nil, chunk1, chunk2, final)
			r = newTestRelay(upstream.URL)
		})

		It("forwards every line verbatim with an event-stream content type", func() {
			resp := postChat(r, makeChatBody("llama3", []llm.Message{
				{Role: llm.RoleUser, Content: "say hello to the world"},
			}, nil))

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			lines := bodyLines(resp)
			Expect(lines).To(Equal([]string{chunk1, chunk2, final}))
		})
	})

	Context("when upstream emits an error line mid-stream", func() {
		chunk1 := `{"model":"xyz","message":{"role":"assistant","content":"par"},"done":false}`
		chunk2 := `{"model":"xyz","message":{"role":"assistant","content":"tial"},"done":false}`

		BeforeEach(func() {
			upstream = ndjsonUpstream(nil, chunk1, chunk2, `{"error":"model xyz not found"}`)
			r = newTestRelay(upstream.URL)
		})

		It("forwards the partial output then exactly one translated error event", func() {
			resp := postChat(r, makeChatBody("xyz", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, nil))

			lines := bodyLines(resp)
			Expect(lines).To(HaveLen(3))
			Expect(lines[0]).To(Equal(chunk1))
			Expect(lines[1]).To(Equal(chunk2))

			var ev llm.ErrorEvent
			Expect(json.Unmarshal([]byte(lines[2]), &ev)).To(Succeed())
			Expect(ev.Error).To(ContainSubstring(`Model "xyz" not found`))
			Expect(ev.Error).To(ContainSubstring("ollama pull xyz"))
		})
	})

	Context("when upstream reports a model loading timeout mid-stream", func() {
		BeforeEach(func() {
			upstream = ndjsonUpstream(nil, `{"error":"timed out waiting for llama runner to be available"}`)
			r = newTestRelay(upstream.URL)
		})

		It("emits one error event with retry guidance naming the resolved model", func() {
			resp := postChat(r, makeChatBody("", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, nil))

			lines := bodyLines(resp)
			Expect(lines).To(HaveLen(1))

			var ev llm.ErrorEvent
			Expect(json.Unmarshal([]byte(lines[0]), &ev)).To(Succeed())
			Expect(ev.Error).To(ContainSubstring("Model loading timeout"))
			Expect(ev.Error).To(ContainSubstring(testDefaultModel))
		})
	})

	Context("when upstream answers a non-success status", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"error":"boom"}`)
			}))
			r = newTestRelay(upstream.URL)
		})

		It("emits exactly one error event carrying the upstream message", func() {
			resp := postChat(r, makeChatBody("llama3", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, nil))

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			lines := bodyLines(resp)
			Expect(lines).To(Equal([]string{`{"error":"boom"}`}))
		})
	})

	Context("when upstream answers a non-success status with an unparseable body", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, "<html>bad gateway</html>")
			}))
			r = newTestRelay(upstream.URL)
		})

		It("falls back to a generic status message", func() {
			resp := postChat(r, makeChatBody("llama3", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, nil))

			lines := bodyLines(resp)
			Expect(lines).To(HaveLen(1))

			var ev llm.ErrorEvent
			Expect(json.Unmarshal([]byte(lines[0]), &ev)).To(Succeed())
			Expect(ev.Error).To(Equal("Ollama API error: 502"))
		})
	})

	Context("when upstream is unreachable", func() {
		BeforeEach(func() {
			// Grab a URL that refuses connections by closing the server
			// before use.
			dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			deadURL := dead.URL
			dead.Close()

			r = newTestRelay(deadURL)
		})

		It("emits exactly one error event naming the unreachable backend", func() {
			resp := postChat(r, makeChatBody("llama3", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, nil))

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			lines := bodyLines(resp)
			Expect(lines).To(HaveLen(1))

			var ev llm.ErrorEvent
			Expect(json.Unmarshal([]byte(lines[0]), &ev)).To(Succeed())
			Expect(ev.Error).To(ContainSubstring("Cannot connect to Ollama server at"))
			Expect(ev.Error).To(ContainSubstring("Make sure Ollama is running."))
		})
	})

	Context("when the upstream exchange exceeds the configured ceiling", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				time.Sleep(500 * time.Millisecond)
			}))
			r = newTestRelay(upstream.URL)
			// Simulate an operator-configured ceiling.
			r.chatClient = &http.Client{Timeout: 50 * time.Millisecond}
		})

		It("emits one error event identifying the timeout", func() {
			resp := postChat(r, makeChatBody("llama3", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, nil))

			lines := bodyLines(resp)
			Expect(lines).To(HaveLen(1))

			var ev llm.ErrorEvent
			Expect(json.Unmarshal([]byte(lines[0]), &ev)).To(Succeed())
			Expect(ev.Error).To(ContainSubstring("Request timeout to Ollama"))
		})
	})

	Context("outbound payload preparation", func() {
		var capture *upstreamCapture

		final := `{"model":"m","message":{"role":"assistant","content":""},"done":true}`

		BeforeEach(func() {
			capture = &upstreamCapture{}
			upstream = ndjsonUpstream(capture, final)
			r = newTestRelay(upstream.URL)
		})

		It("substitutes the default model for an empty model name", func() {
			resp := postChat(r, makeChatBody("", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, nil))
			_ = bodyLines(resp)

			Expect(capture.get().Model).To(Equal(testDefaultModel))
		})

		It("substitutes the default model for the placeholder sentinel", func() {
			resp := postChat(r, makeChatBody("string", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, nil))
			_ = bodyLines(resp)

			Expect(capture.get().Model).To(Equal(testDefaultModel))
		})

		It("normalizes user messages and leaves other roles untouched", func() {
			resp := postChat(r, makeChatBody("llama3", []llm.Message{
				{Role: llm.RoleSystem, Content: "you are teh assistant"},
				{Role: llm.RoleUser, Content: "whats the time"},
			}, nil))
			_ = bodyLines(resp)

			payload := capture.get()
			Expect(payload.Messages).To(HaveLen(2))
			Expect(payload.Messages[0].Content).To(Equal("you are teh assistant"))
			Expect(payload.Messages[1].Content).To(Equal("Whats the time?"))
		})

		It("defaults stream to true when the field is omitted", func() {
			resp := postChat(r, makeChatBody("llama3", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, nil))
			_ = bodyLines(resp)

			Expect(capture.get().Stream).To(BeTrue())
		})

		It("honors an explicit stream=false", func() {
			f := false
			resp := postChat(r, makeChatBody("llama3", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, &f))
			_ = bodyLines(resp)

			Expect(capture.get().Stream).To(BeFalse())
		})
	})

	Context("when the request body is not valid JSON", func() {
		BeforeEach(func() {
			r = newTestRelay("http://localhost:11434")
		})

		It("rejects the request without opening an upstream connection", func() {
			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
			req.Header.Set("Content-Type", "application/json")
			resp, err := r.server.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Context("the /submit alias", func() {
		final := `{"model":"m","message":{"role":"assistant","content":"ok"},"done":true}`

		BeforeEach(func() {
			upstream = ndjsonUpstream(nil, final)
			r = newTestRelay(upstream.URL)
		})

		It("behaves exactly like /chat", func() {
			body := makeChatBody("llama3", []llm.Message{
				{Role: llm.RoleUser, Content: "say something interesting"},
			}, nil)
			req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := r.server.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(bodyLines(resp)).To(Equal([]string{final}))
		})
	})
})
