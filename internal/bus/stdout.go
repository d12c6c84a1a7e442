package bus

import (
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StdoutPublisher writes one NDJSON line per message to an
// io.Writer — typically os.Stdout, for local debugging without a
// real transport attached.
type StdoutPublisher struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdoutPublisher constructs a StdoutPublisher writing to w.
func NewStdoutPublisher(w io.Writer) *StdoutPublisher {
	return &StdoutPublisher{w: w}
}

type envelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Publish marshals {topic, payload} as one JSON line, newline-terminated.
func (p *StdoutPublisher) Publish(topic string, payload any) error {
	line, err := json.Marshal(envelope{Topic: topic, Payload: payload})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.w.Write(line)
	return err
}
