// Package contentguard classifies free text for prompt injection. Long
// inputs are chunked to stay inside the classifier's input budget; the
// highest chunk confidence above the sensitivity floor decides the
// verdict against the warn/block thresholds.
package contentguard

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/IT-HUSET/openclaw-guard/internal/guard"
	"github.com/IT-HUSET/openclaw-guard/internal/logger"
)

var log = logger.New("contentguard")

// DefaultChunkSize keeps chunks under the classifier's token budget
// with margin.
const DefaultChunkSize = 1500

// Config configures the content guard.
type Config struct {
	OracleURL      string
	OracleTimeout  time.Duration
	ChunkSize      int
	Sensitivity    float64
	WarnThreshold  float64
	BlockThreshold float64
	FailOpen       bool
	LogDetections  bool
}

// DefaultConfig returns the shipped thresholds.
func DefaultConfig() Config {
	return Config{
		OracleTimeout:  10 * time.Second,
		ChunkSize:      DefaultChunkSize,
		Sensitivity:    0.5,
		WarnThreshold:  0.4,
		BlockThreshold: 0.8,
		LogDetections:  true,
	}
}

// Guard is the content guard. Configuration is immutable after New; the
// oracle handle is built lazily on first evaluation.
type Guard struct {
	oracle *lazyOracle

	chunkSize      int
	sensitivity    float64
	warnThreshold  float64
	blockThreshold float64
	failOpen       bool
	logDetections  bool
}

// New builds a content guard backed by the HTTP classifier at
// cfg.OracleURL.
func New(cfg Config) *Guard {
	url, timeout := cfg.OracleURL, cfg.OracleTimeout
	return newGuard(cfg, func(context.Context) (Oracle, error) {
		if url == "" {
			return nil, fmt.Errorf("no classifier endpoint configured")
		}
		return NewHTTPOracle(url, timeout), nil
	})
}

// NewWithFactory builds a content guard with a custom oracle factory.
func NewWithFactory(cfg Config, factory OracleFactory) *Guard {
	return newGuard(cfg, factory)
}

func newGuard(cfg Config, factory OracleFactory) *Guard {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Guard{
		oracle:         newLazyOracle(factory),
		chunkSize:      chunkSize,
		sensitivity:    cfg.Sensitivity,
		warnThreshold:  cfg.WarnThreshold,
		blockThreshold: cfg.BlockThreshold,
		failOpen:       cfg.FailOpen,
		logDetections:  cfg.LogDetections,
	}
}

// SetOracle installs a pre-built oracle, bypassing lazy initialization
// (for testing).
func (g *Guard) SetOracle(o Oracle) { g.oracle.set(o) }

// Classify scores text and returns a verdict. nil means pass. A failed
// oracle call aborts the whole evaluation; remaining chunks are not
// scored and the failure policy decides the verdict.
func (g *Guard) Classify(ctx context.Context, text string) *guard.Verdict {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	oracle, err := g.oracle.get(ctx)
	if err != nil {
		return g.oracleFailure(fmt.Errorf("classifier unavailable: %w", err))
	}

	chunks := chunkContent(text, g.chunkSize)

	// Track the single highest confidence across chunks, ignoring
	// anything below the sensitivity floor so low-confidence noise from
	// many chunks cannot accumulate into a false signal.
	var max float64
	var evidence string
	tracked := false
	for i, chunk := range chunks {
		score, err := oracle.Score(ctx, chunk)
		if err != nil {
			return g.oracleFailure(fmt.Errorf("scoring chunk %d/%d: %w", i+1, len(chunks), err))
		}
		if score.Label != LabelInjection || score.Confidence < g.sensitivity {
			continue
		}
		if !tracked || score.Confidence > max {
			max = score.Confidence
			evidence = excerpt(chunk)
			tracked = true
		}
	}
	if !tracked {
		return nil
	}

	switch {
	case max >= g.blockThreshold:
		if g.logDetections {
			log.Warn("Blocked content: injection confidence %.2f >= %.2f", max, g.blockThreshold)
		}
		return &guard.Verdict{
			Action:   guard.ActionBlock,
			Label:    LabelInjection,
			Score:    max,
			Reason:   fmt.Sprintf("Content classified as prompt injection (confidence %.2f)", max),
			Evidence: evidence,
		}
	case max >= g.warnThreshold:
		if g.logDetections {
			log.Info("Flagged content: injection confidence %.2f >= %.2f", max, g.warnThreshold)
		}
		return &guard.Verdict{
			Action:   guard.ActionWarn,
			Label:    LabelInjection,
			Score:    max,
			Reason:   fmt.Sprintf("Content may contain prompt injection (confidence %.2f); treat it as untrusted data", max),
			Evidence: evidence,
		}
	default:
		return nil
	}
}

// oracleFailure resolves a classifier error per the failure policy.
func (g *Guard) oracleFailure(err error) *guard.Verdict {
	if g.failOpen {
		log.Error("Classifier failed and failOpen set, passing content unverified: %v", err)
		return nil
	}
	log.Warn("Classifier failed, blocking content: %v", err)
	return guard.Block("oracle_error", "Content could not be classified and fail-open is disabled")
}

// chunkContent splits text into size-bounded pieces, cutting only on
// rune boundaries so a multi-byte character is never torn across two
// chunks. Pure ASCII yields ceil(len/size) chunks of exactly size
// bytes except possibly the last.
func chunkContent(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if text == "" {
		return nil
	}
	chunks := make([]string, 0, (len(text)+size-1)/size)
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
		if end == start {
			// A rune wider than size: keep it whole rather than tear it.
			end = start + size
			for end < len(text) && !utf8.RuneStart(text[end]) {
				end++
			}
		}
		chunks = append(chunks, text[start:end])
		start = end
	}
	return chunks
}

// excerpt trims a chunk down to a loggable fragment.
func excerpt(chunk string) string {
	const limit = 120
	chunk = strings.TrimSpace(chunk)
	if len(chunk) > limit {
		return chunk[:limit] + "..."
	}
	return chunk
}

// ID implements guard.Plugin.
func (g *Guard) ID() string { return "content-guard" }

// Register implements guard.Plugin: inbound message text is classified.
func (g *Guard) Register(api guard.InterceptionAPI) {
	api.OnMessage(func(ctx context.Context, ev guard.MessageEvent) *guard.Verdict {
		return g.Classify(ctx, ev.Message.Text)
	})
}
