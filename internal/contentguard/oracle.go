package contentguard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Classifier labels.
const (
	LabelInjection = "INJECTION"
	LabelSafe      = "SAFE"
)

// Score is the oracle's answer for one piece of text.
type Score struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Oracle scores text for prompt injection. Implemented by a
// model-serving component outside this process.
type Oracle interface {
	Score(ctx context.Context, text string) (Score, error)
}

// OracleFactory builds an oracle handle. Called once on first use;
// called again only if the previous attempt failed.
type OracleFactory func(ctx context.Context) (Oracle, error)

// HTTPOracle talks to a classifier model server over HTTP.
type HTTPOracle struct {
	endpoint string
	client   *http.Client
}

// NewHTTPOracle builds a client for the classifier endpoint. The
// timeout bounds each scoring request.
func NewHTTPOracle(endpoint string, timeout time.Duration) *HTTPOracle {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPOracle{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type scoreRequest struct {
	Text string `json:"text"`
}

// Score posts the text to the model server and decodes its answer.
func (o *HTTPOracle) Score(ctx context.Context, text string) (Score, error) {
	body, err := json.Marshal(scoreRequest{Text: text})
	if err != nil {
		return Score{}, fmt.Errorf("encoding score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return Score{}, fmt.Errorf("building score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Score{}, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Score{}, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var s Score
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Score{}, fmt.Errorf("decoding classifier response: %w", err)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return Score{}, fmt.Errorf("classifier confidence %v out of range", s.Confidence)
	}
	return s, nil
}

// lazyOracle memoizes oracle construction: the first caller runs the
// factory, concurrent callers await the same result, and a failed
// attempt clears the memo so a later call can retry.
type lazyOracle struct {
	factory OracleFactory

	mu       sync.Mutex
	oracle   Oracle
	inflight *oracleInit
}

type oracleInit struct {
	done   chan struct{}
	oracle Oracle
	err    error
}

func newLazyOracle(factory OracleFactory) *lazyOracle {
	return &lazyOracle{factory: factory}
}

// get returns the oracle handle, initializing it on first use.
func (l *lazyOracle) get(ctx context.Context) (Oracle, error) {
	l.mu.Lock()
	if l.oracle != nil {
		o := l.oracle
		l.mu.Unlock()
		return o, nil
	}
	init := l.inflight
	if init == nil {
		init = &oracleInit{done: make(chan struct{})}
		l.inflight = init
		factory := l.factory
		go func() {
			o, err := factory(context.Background())
			l.mu.Lock()
			if err == nil {
				l.oracle = o
			}
			l.inflight = nil
			l.mu.Unlock()
			init.oracle, init.err = o, err
			close(init.done)
		}()
	}
	l.mu.Unlock()

	select {
	case <-init.done:
		return init.oracle, init.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// set installs a pre-built oracle, bypassing the factory (for testing).
func (l *lazyOracle) set(o Oracle) {
	l.mu.Lock()
	l.oracle = o
	l.mu.Unlock()
}
