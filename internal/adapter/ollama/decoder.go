package ollama

import (
	"bytes"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/xiaot623/helia/internal/domain"
)

// generateChunk is one NDJSON record of a /api/generate response.
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// decoder turns a chunk-fragmented NDJSON byte stream into stream events.
// It holds the residual partial line and the terminal-sent flag for one call.
type decoder struct {
	sink     Sink
	logger   *zap.Logger
	residual []byte
	finished bool
}

func newDecoder(sink Sink, logger *zap.Logger) *decoder {
	return &decoder{sink: sink, logger: logger}
}

// Write feeds one delivery chunk. Complete lines are processed immediately;
// the trailing fragment is kept for the next call. Bytes arriving after the
// terminal event are discarded.
func (d *decoder) Write(p []byte) (int, error) {
	if d.finished {
		return len(p), nil
	}
	d.residual = append(d.residual, p...)
	for !d.finished {
		i := bytes.IndexByte(d.residual, '\n')
		if i < 0 {
			break
		}
		line := d.residual[:i]
		d.residual = d.residual[i+1:]
		d.processLine(line)
	}
	if d.finished {
		d.residual = nil
	}
	return len(p), nil
}

// Close handles end of body: the unterminated tail is decoded as a last line
// and, without a done record, an empty completion is synthesized.
func (d *decoder) Close() {
	if d.finished {
		return
	}
	if len(d.residual) > 0 {
		line := d.residual
		d.residual = nil
		d.processLine(line)
	}
	if !d.finished {
		d.terminate(domain.Complete(""))
	}
}

// Fail ends the stream with a failure unless a terminal event was already sent.
func (d *decoder) Fail(reason string) {
	if d.finished {
		return
	}
	d.residual = nil
	d.terminate(domain.Failed(reason))
}

// Finished reports whether the terminal event has been emitted.
func (d *decoder) Finished() bool {
	return d.finished
}

func (d *decoder) processLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var chunk generateChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		d.logger.Debug("skipping malformed record", zap.ByteString("line", line), zap.Error(err))
		return
	}

	if chunk.Error != "" {
		d.logger.Warn("backend reported error in stream", zap.String("error", chunk.Error))
		d.terminate(domain.Failed(backendError(chunk.Error)))
		return
	}
	if chunk.Response != "" {
		d.sink(domain.Token(chunk.Response))
	}
	if chunk.Done {
		d.terminate(domain.Complete(chunk.Response))
	}
}

func (d *decoder) terminate(ev domain.StreamEvent) {
	d.finished = true
	d.sink(ev)
}
