// Package persona generates synthetic customer personas from a business
// context. Generation is a two-step process: a reflection pass identifies
// which persona types are worth interviewing, then detailed personas are
// generated for each outline in parallel. Malformed model output gets one
// corrective retry before failing with core.GenerationError.
package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
	"github.com/hupe1980/discoverysim/logging"
)

const (
	reflectMaxTokens = 2000
	detailMaxTokens  = 3000
)

// Options configure the persona generator.
type Options struct {
	// Parallelism bounds concurrent detail generations per batch.
	Parallelism int
	// Logger receives generation diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Generator produces persona batches via the model gateway.
type Generator struct {
	gw          gateway.Gateway
	parallelism int
	logger      logging.Logger
}

// NewGenerator constructs a Generator with optional overrides.
func NewGenerator(gw gateway.Gateway, optFns ...func(o *Options)) *Generator {
	opts := Options{
		Parallelism: 5,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Generator{gw: gw, parallelism: opts.Parallelism, logger: opts.Logger}
}

// Reflect identifies count persona outlines worth interviewing for the
// context. It performs no simulation side effects and is used for planning
// before committing to a full run.
func (g *Generator) Reflect(ctx context.Context, bizContext string, count int) ([]core.PersonaOutline, error) {
	outlines, err := g.reflect(ctx, bizContext, count, "")
	if err == nil {
		return outlines, nil
	}
	if isInfrastructure(err) {
		return nil, err
	}
	g.logger.Warn("persona reflection produced unusable output, retrying once", "error", err)
	outlines, err = g.reflect(ctx, bizContext, count, correctiveInstruction)
	if err == nil {
		return outlines, nil
	}
	if isInfrastructure(err) {
		return nil, err
	}
	return nil, &core.GenerationError{Stage: "reflect", Err: err}
}

// Generate produces exactly count fully detailed personas for the context.
func (g *Generator) Generate(ctx context.Context, bizContext string, count int) ([]*core.Persona, error) {
	outlines, err := g.Reflect(ctx, bizContext, count)
	if err != nil {
		return nil, err
	}

	personas := make([]*core.Persona, len(outlines))
	errs := make([]error, len(outlines))
	sem := make(chan struct{}, g.parallelism)
	var wg sync.WaitGroup
	for i, outline := range outlines {
		wg.Add(1)
		go func(i int, outline core.PersonaOutline) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			personas[i], errs[i] = g.generateDetail(ctx, bizContext, outline)
		}(i, outline)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return personas, nil
}

func (g *Generator) reflect(ctx context.Context, bizContext string, count int, corrective string) ([]core.PersonaOutline, error) {
	prompt := reflectPrompt(bizContext, count)
	if corrective != "" {
		prompt += "\n\n" + corrective
	}
	raw, err := g.gw.GenerateStructured(ctx, gateway.StructuredRequest{
		System:     reflectSystemPrompt,
		Prompt:     prompt,
		SchemaHint: reflectSchemaHint(count),
		MaxTokens:  reflectMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Reasoning string                `json:"reasoning"`
		Personas  []core.PersonaOutline `json:"personas"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode reflection output: %w", err)
	}
	if len(payload.Personas) < count {
		return nil, fmt.Errorf("expected %d persona outlines, got %d", count, len(payload.Personas))
	}
	outlines := payload.Personas[:count]
	for i, o := range outlines {
		if o.Role == "" || o.Description == "" {
			return nil, fmt.Errorf("persona outline %d has empty role or description", i)
		}
	}
	if payload.Reasoning != "" {
		g.logger.Debug("persona selection reasoning", "reasoning", payload.Reasoning)
	}
	return outlines, nil
}

func (g *Generator) generateDetail(ctx context.Context, bizContext string, outline core.PersonaOutline) (*core.Persona, error) {
	p, err := g.detail(ctx, bizContext, outline, "")
	if err == nil {
		return p, nil
	}
	if isInfrastructure(err) {
		return nil, err
	}
	g.logger.Warn("persona detail generation produced unusable output, retrying once", "role", outline.Role, "error", err)
	p, err = g.detail(ctx, bizContext, outline, correctiveInstruction)
	if err == nil {
		return p, nil
	}
	if isInfrastructure(err) {
		return nil, err
	}
	return nil, &core.GenerationError{Stage: "persona", Err: err}
}

func (g *Generator) detail(ctx context.Context, bizContext string, outline core.PersonaOutline, corrective string) (*core.Persona, error) {
	prompt := detailPrompt(bizContext, outline.Role, outline.Description)
	if corrective != "" {
		prompt += "\n\n" + corrective
	}
	raw, err := g.gw.GenerateStructured(ctx, gateway.StructuredRequest{
		System:     detailSystemPrompt,
		Prompt:     prompt,
		SchemaHint: detailSchemaHint,
		MaxTokens:  detailMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var p core.Persona
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode persona output: %w", err)
	}
	if err := validatePersona(&p); err != nil {
		return nil, err
	}
	p.ID = core.NewID()
	return &p, nil
}

func validatePersona(p *core.Persona) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("persona is missing a name")
	case p.Background == "":
		return fmt.Errorf("persona %q is missing a background", p.Name)
	case len(p.Goals) == 0:
		return fmt.Errorf("persona %q has no goals", p.Name)
	case len(p.PainPoints) == 0:
		return fmt.Errorf("persona %q has no pain points", p.Name)
	case len(p.Motivations) == 0:
		return fmt.Errorf("persona %q has no motivations", p.Name)
	}
	return nil
}

// isInfrastructure reports whether err is a gateway failure rather than
// malformed-but-delivered output. Infrastructure failures surface as-is;
// only malformed output gets the corrective retry.
func isInfrastructure(err error) bool {
	var ge *core.GatewayError
	return errors.As(err, &ge) && !errors.Is(err, gateway.ErrNoJSON)
}
