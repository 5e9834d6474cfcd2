package progress

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sj-versent/demo-aws-summit-2025/internal/generation"
)

const ConnectionLostMessage = "connection lost"

var ErrConnectionLost = errors.New(ConnectionLostMessage)

// maxEventSize bounds one data line; a 1024x1024 PNG in base64 is a few MB.
const maxEventSize = 32 << 20

// Read consumes an SSE progress stream, calling fn for every status in order,
// and returns the terminal status. A stream that ends early yields
// Failed("connection lost") together with ErrConnectionLost.
func Read(r io.Reader, fn func(generation.Status)) (generation.Status, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if data.Len() == 0 {
				continue
			}
			var ev Event
			if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
				return lost(fn), fmt.Errorf("decode progress event: %w", err)
			}
			data.Reset()

			st := ev.ToStatus()
			if fn != nil {
				fn(st)
			}
			if st.Terminal() {
				return st, nil
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return lost(fn), fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return lost(fn), ErrConnectionLost
}

func lost(fn func(generation.Status)) generation.Status {
	st := generation.Failed(ConnectionLostMessage)
	if fn != nil {
		fn(st)
	}
	return st
}
