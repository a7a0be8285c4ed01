// Package interview drives multi-turn discovery conversations between a
// model-played interviewer and a model-played persona. One driver runs one
// conversation to completion; the caller owns concurrency and lifecycle.
package interview

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
	"github.com/hupe1980/discoverysim/logging"
)

const (
	questionMaxTokens = 300
	replyMaxTokens    = 500
	summaryMaxTokens  = 300

	// minTurnsForSummary is the smallest exchange count that yields a
	// meaningful summary; shorter transcripts skip summarization.
	minTurnsForSummary = 2
)

// Options configure an interview driver.
type Options struct {
	// MaxTurns caps the number of interviewer/persona exchanges.
	MaxTurns int
	// OnTurn is invoked after each completed exchange. May be nil.
	OnTurn func()
	// Logger receives per-turn diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Driver conducts a single conversation turn by turn until a stop condition
// is reached.
type Driver struct {
	gw       gateway.Gateway
	maxTurns int
	onTurn   func()
	logger   logging.Logger
}

// NewDriver constructs a Driver with optional overrides.
func NewDriver(gw gateway.Gateway, optFns ...func(o *Options)) *Driver {
	opts := Options{
		MaxTurns: 10,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTurns < 1 {
		opts.MaxTurns = 1
	}
	return &Driver{
		gw:       gw,
		maxTurns: opts.MaxTurns,
		onTurn:   opts.OnTurn,
		logger:   opts.Logger,
	}
}

// Run executes the turn loop for conv until cancellation, the turn cap, a
// natural close, or a gateway failure. On failure the partial transcript is
// retained and the failure recorded on the conversation; Run then returns
// the error. The conversation is always marked complete before Run returns.
func (d *Driver) Run(ctx context.Context, bizContext string, persona *core.Persona, conv *core.Conversation) error {
	var runErr error
	for turn := 1; ; turn++ {
		if ctx.Err() != nil {
			d.logger.Info("conversation stopped by cancellation", "conversation_id", conv.ID(), "turns", conv.Turns())
			break
		}
		if conv.Turns() >= d.maxTurns {
			d.logger.Info("conversation reached turn cap", "conversation_id", conv.ID(), "turns", conv.Turns())
			break
		}

		start := time.Now()

		question, err := d.nextQuestion(ctx, bizContext, persona, conv, turn)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			runErr = err
			conv.Fail("interviewer question failed: " + err.Error())
			break
		}

		reply, err := d.personaReply(ctx, bizContext, persona, conv, question)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			runErr = err
			conv.Fail("persona reply failed: " + err.Error())
			break
		}
		reply, closed := stripClosingMarker(reply)

		// The question is only committed once its reply exists, so the
		// transcript never ends on an unanswered interviewer message.
		if err := conv.Append(core.RoleInterviewer, question); err != nil {
			runErr = err
			break
		}
		if err := conv.Append(core.RolePersona, reply); err != nil {
			runErr = err
			break
		}

		d.logger.Debug("conversation turn completed", "conversation_id", conv.ID(), "turn", conv.Turns(), "duration", time.Since(start))
		if d.onTurn != nil {
			d.onTurn()
		}

		if closed {
			d.logger.Info("persona signaled a natural close", "conversation_id", conv.ID(), "turns", conv.Turns())
			break
		}
	}

	d.summarize(ctx, bizContext, conv)
	conv.Complete()
	return runErr
}

func (d *Driver) nextQuestion(ctx context.Context, bizContext string, persona *core.Persona, conv *core.Conversation, turn int) (string, error) {
	if turn == 1 {
		return openingQuestion(bizContext, persona), nil
	}

	system, err := interviewerSystemPrompt(bizContext, persona)
	if err != nil {
		return "", err
	}
	// From the interviewer's perspective its own past questions are the
	// assistant side of the exchange.
	turns := historyAs(conv, core.RoleInterviewer)
	return d.gw.GenerateReply(ctx, gateway.ReplyRequest{
		System:    system,
		Turns:     turns,
		MaxTokens: questionMaxTokens,
	})
}

func (d *Driver) personaReply(ctx context.Context, bizContext string, persona *core.Persona, conv *core.Conversation, question string) (string, error) {
	system, err := personaSystemPrompt(bizContext, persona)
	if err != nil {
		return "", err
	}
	turns := historyAs(conv, core.RolePersona)
	turns = append(turns, gateway.Turn{Role: gateway.TurnUser, Content: question})
	return d.gw.GenerateReply(ctx, gateway.ReplyRequest{
		System:    system,
		Turns:     turns,
		MaxTokens: replyMaxTokens,
	})
}

func (d *Driver) summarize(ctx context.Context, bizContext string, conv *core.Conversation) {
	if conv.Turns() < minTurnsForSummary {
		return
	}
	summary, err := d.gw.GenerateReply(ctx, gateway.ReplyRequest{
		System:    summarySystemPrompt,
		Turns:     []gateway.Turn{{Role: gateway.TurnUser, Content: summaryPrompt(bizContext, Transcript(conv.Snapshot()))}},
		MaxTokens: summaryMaxTokens,
	})
	if err != nil {
		// Best effort only; a missing summary never fails the conversation.
		d.logger.Warn("conversation summary failed", "conversation_id", conv.ID(), "error", err)
		return
	}
	conv.SetSummary(strings.TrimSpace(summary))
}

// historyAs maps the transcript into gateway turns from the point of view
// of self: self's messages become assistant turns, the counterpart's become
// user turns.
func historyAs(conv *core.Conversation, self string) []gateway.Turn {
	snap := conv.Snapshot()
	turns := make([]gateway.Turn, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		role := gateway.TurnUser
		if m.Role == self {
			role = gateway.TurnAssistant
		}
		turns = append(turns, gateway.Turn{Role: role, Content: m.Content})
	}
	return turns
}

// stripClosingMarker removes the natural-close marker from a reply and
// reports whether it was present.
func stripClosingMarker(reply string) (string, bool) {
	if !strings.Contains(reply, closingMarker) {
		return strings.TrimSpace(reply), false
	}
	return strings.TrimSpace(strings.ReplaceAll(reply, closingMarker, "")), true
}

// Transcript renders a snapshot as plain text, one "ROLE: content" line per
// message. Used for summarization and insight extraction prompts.
func Transcript(snap core.ConversationSnapshot) string {
	var b strings.Builder
	for i, m := range snap.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.ToUpper(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
