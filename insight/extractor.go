// Package insight turns completed interview transcripts into aggregated,
// ranked insight records. Extraction is best-effort: a degraded or failed
// extraction yields an empty set and a diagnostic error, never a reason to
// fail an otherwise finished simulation.
package insight

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
	"github.com/hupe1980/discoverysim/interview"
	"github.com/hupe1980/discoverysim/logging"
)

const extractMaxTokens = 2000

// DefaultInputCharBudget bounds the combined transcript text sent to the
// model in one extraction call.
const DefaultInputCharBudget = 48000

// Options configure the insight extractor.
type Options struct {
	// InputCharBudget caps combined transcript characters per call.
	InputCharBudget int
	// Logger receives extraction diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Extractor derives insights from conversation transcripts via the model
// gateway.
type Extractor struct {
	gw     gateway.Gateway
	budget int
	logger logging.Logger
}

// NewExtractor constructs an Extractor with optional overrides.
func NewExtractor(gw gateway.Gateway, optFns ...func(o *Options)) *Extractor {
	opts := Options{
		InputCharBudget: DefaultInputCharBudget,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.InputCharBudget < 1 {
		opts.InputCharBudget = DefaultInputCharBudget
	}
	return &Extractor{gw: gw, budget: opts.InputCharBudget, logger: opts.Logger}
}

// Extract analyzes the transcripts and returns aggregated insights. An empty
// result with a nil error means the model produced nothing usable; a non-nil
// error is a diagnostic for the caller to log, not a reason to fail the
// simulation.
func (e *Extractor) Extract(ctx context.Context, bizContext string, conversations []core.ConversationSnapshot) ([]core.Insight, error) {
	sample := e.sample(conversations)
	if sample == "" {
		return nil, nil
	}

	raw, err := e.gw.GenerateStructured(ctx, gateway.StructuredRequest{
		System:     extractSystemPrompt,
		Prompt:     extractPrompt(bizContext, sample),
		SchemaHint: extractSchemaHint,
		MaxTokens:  extractMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	insights := parseInsights(raw)
	e.logger.Info("insight extraction finished", "insights", len(insights), "conversations", len(conversations))
	return insights, nil
}

// sample joins transcripts oldest-first until the character budget is
// exhausted. Later conversations are dropped whole; the first transcript is
// always included, hard-truncated if it alone exceeds the budget.
func (e *Extractor) sample(conversations []core.ConversationSnapshot) string {
	var b strings.Builder
	for i, snap := range conversations {
		text := interview.Transcript(snap)
		if text == "" {
			continue
		}
		section := headerFor(snap, i) + "\n" + text
		if b.Len() == 0 {
			if len(section) > e.budget {
				section = truncateRunes(section, e.budget)
			}
			b.WriteString(section)
			continue
		}
		if b.Len()+len(section)+2 > e.budget {
			e.logger.Debug("transcript sample truncated", "included", i, "total", len(conversations))
			break
		}
		b.WriteString("\n\n")
		b.WriteString(section)
	}
	return b.String()
}

// truncateRunes cuts s to at most n bytes without splitting a multi-byte
// rune, so the truncated text is still valid UTF-8.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func headerFor(snap core.ConversationSnapshot, i int) string {
	if snap.Summary != "" {
		return extractConversationHeader(i+1, snap.Summary)
	}
	return extractConversationHeader(i+1, "")
}

// parseInsights reads a JSON array of insights, tolerating a wrapper object
// with an "insights" key. Entries missing a theme or description are dropped
// and confidence is clamped into range.
func parseInsights(raw []byte) []core.Insight {
	doc := gjson.ParseBytes(raw)
	arr := doc
	if doc.IsObject() {
		arr = doc.Get("insights")
	}
	if !arr.IsArray() {
		return nil
	}

	var insights []core.Insight
	arr.ForEach(func(_, item gjson.Result) bool {
		theme := strings.TrimSpace(item.Get("theme").String())
		description := strings.TrimSpace(item.Get("description").String())
		if theme == "" || description == "" {
			return true
		}
		ins := core.NewInsight(
			theme,
			description,
			strings.TrimSpace(item.Get("evidence").String()),
			strings.TrimSpace(item.Get("impact").String()),
			int(item.Get("confidence").Int()),
		)
		ins.ConversationID = strings.TrimSpace(item.Get("conversation_id").String())
		insights = append(insights, ins)
		return true
	})
	return insights
}
