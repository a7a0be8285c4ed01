package insight

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
)

func snapshotWith(messages ...string) core.ConversationSnapshot {
	conv := core.NewConversation(core.NewID(), "p1")
	for i, content := range messages {
		role := core.RoleInterviewer
		if i%2 == 1 {
			role = core.RolePersona
		}
		_ = conv.Append(role, content)
	}
	return conv.Snapshot()
}

func TestExtractParsesArray(t *testing.T) {
	mock := gateway.NewMock()
	mock.StubStructured("", `[
	  {"theme": "Tool fatigue", "description": "Users juggle too many tools.", "evidence": "Both interviews", "impact": "Consolidation opportunity", "confidence": 4},
	  {"theme": "Slow approvals", "description": "Purchasing blocks adoption.", "evidence": "Interview 2", "impact": "Self-serve tier", "confidence": 9},
	  {"theme": "", "description": "Dropped for missing theme."}
	]`)

	e := NewExtractor(mock)
	insights, err := e.Extract(context.Background(), "expense tracking",
		[]core.ConversationSnapshot{snapshotWith("q", "a")})
	require.NoError(t, err)
	require.Len(t, insights, 2)

	assert.Equal(t, "Tool fatigue", insights[0].Theme)
	assert.Equal(t, 4, insights[0].Confidence)
	// Out-of-band confidence is clamped, not rejected.
	assert.Equal(t, 5, insights[1].Confidence)
}

func TestExtractUnwrapsInsightsObject(t *testing.T) {
	mock := gateway.NewMock()
	mock.StubStructured("", `{"insights": [{"theme": "T", "description": "D", "confidence": 0}]}`)

	e := NewExtractor(mock)
	insights, err := e.Extract(context.Background(), "ctx",
		[]core.ConversationSnapshot{snapshotWith("q", "a")})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, 1, insights[0].Confidence)
}

func TestExtractEmptyTranscriptsSkipModel(t *testing.T) {
	mock := gateway.NewMock()

	e := NewExtractor(mock)
	insights, err := e.Extract(context.Background(), "ctx", nil)
	require.NoError(t, err)
	assert.Empty(t, insights)
	assert.Zero(t, mock.StructuredCalls())
}

func TestExtractGatewayFailureIsDiagnostic(t *testing.T) {
	mock := gateway.NewMock()
	mock.FailStructured(&core.GatewayError{Op: "structured", Err: context.DeadlineExceeded})

	e := NewExtractor(mock)
	insights, err := e.Extract(context.Background(), "ctx",
		[]core.ConversationSnapshot{snapshotWith("q", "a")})
	require.Error(t, err)
	assert.Empty(t, insights)
}

func TestExtractNoValidInsightsIsNotError(t *testing.T) {
	mock := gateway.NewMock()
	mock.StubStructured("", `[{"theme": "only theme, no description"}]`)

	e := NewExtractor(mock)
	insights, err := e.Extract(context.Background(), "ctx",
		[]core.ConversationSnapshot{snapshotWith("q", "a")})
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestSampleDropsNewestWhenOverBudget(t *testing.T) {
	e := NewExtractor(gateway.NewMock(), func(o *Options) { o.InputCharBudget = 200 })

	long := strings.Repeat("x", 120)
	first := snapshotWith("q1", long)
	second := snapshotWith("q2", long)

	sample := e.sample([]core.ConversationSnapshot{first, second})
	assert.Contains(t, sample, "Interview 1")
	assert.NotContains(t, sample, "Interview 2")
	assert.LessOrEqual(t, len(sample), 200)
}

func TestSampleTruncatesSingleOversizedTranscript(t *testing.T) {
	e := NewExtractor(gateway.NewMock(), func(o *Options) { o.InputCharBudget = 80 })

	only := snapshotWith("q1", strings.Repeat("y", 500))
	sample := e.sample([]core.ConversationSnapshot{only})
	assert.Len(t, sample, 80)
}

func TestSampleTruncationKeepsValidUTF8(t *testing.T) {
	e := NewExtractor(gateway.NewMock(), func(o *Options) { o.InputCharBudget = 80 })

	only := snapshotWith("q1", strings.Repeat("ü", 500))
	sample := e.sample([]core.ConversationSnapshot{only})
	assert.LessOrEqual(t, len(sample), 80)
	assert.True(t, utf8.ValidString(sample))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "a", truncateRunes("aüb", 2))
	assert.Equal(t, "aü", truncateRunes("aüb", 3))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
}
