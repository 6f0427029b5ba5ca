package aggregate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"miniarima/internal/domain"
	"miniarima/internal/providers/openai"
)

// failurePlaceholder substitutes a participant's output in the meta-prompt
// when that participant failed or crashed.
const failurePlaceholder = "ERROR: the model failed to produce a response."

// Chatter is the slice of the provider client the aggregator needs.
type Chatter interface {
	CompleteChat(ctx context.Context, model string, messages []openai.Message, temperature float64, class openai.TimeoutClass) (string, error)
}

// ParticipantResult is one fan-out outcome, consumed entirely within a
// single RunEnhanced call.
type ParticipantResult struct {
	Model string
	Text  string
	Err   error
}

// Failed reports whether the participant contributed nothing usable.
func (r ParticipantResult) Failed() bool {
	return r.Err != nil || strings.TrimSpace(r.Text) == ""
}

// Aggregator fans one prompt out to every participant model in parallel and
// synthesizes a single answer through a distinct arbiter model.
type Aggregator struct {
	client       Chatter
	participants []string
	arbiter      string
	temperature  float64
	logger       zerolog.Logger
}

// New builds an aggregator over a fixed ordered participant list and an
// arbiter model.
func New(client Chatter, participants []string, arbiter string, temperature float64, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		client:       client,
		participants: participants,
		arbiter:      arbiter,
		temperature:  temperature,
		logger:       logger,
	}
}

// RunEnhanced asks every participant concurrently, waits for all of them
// (a slow or failed participant never cancels the others), and hands the
// labeled outputs to the arbiter. The result list always follows the
// configured participant order, not completion order.
func (a *Aggregator) RunEnhanced(ctx context.Context, prompt string, userID int64) (string, error) {
	a.logger.Info().Int64("user_id", userID).Int("participants", len(a.participants)).
		Msg("starting enhanced mode")

	results := make([]ParticipantResult, len(a.participants))
	var g errgroup.Group
	for i, model := range a.participants {
		g.Go(func() error {
			results[i] = a.askParticipant(ctx, model, prompt)
			return nil
		})
	}
	_ = g.Wait() // participant tasks capture their own failures

	usable := 0
	for _, r := range results {
		if !r.Failed() {
			usable++
		}
	}
	if usable == 0 {
		a.logger.Error().Int64("user_id", userID).
			Msg("enhanced mode: every participant failed or returned empty text")
		return "", domain.ErrAllParticipantsFailed
	}

	meta := buildMetaPrompt(prompt, results)
	a.logger.Debug().Int64("user_id", userID).Str("arbiter", a.arbiter).
		Int("usable", usable).Msg("submitting meta-prompt to arbiter")

	final, err := a.client.CompleteChat(ctx, a.arbiter,
		[]openai.Message{{Role: "user", Content: meta}}, a.temperature, openai.TimeoutChat)
	if err != nil {
		a.logger.Error().Err(err).Str("arbiter", a.arbiter).Int64("user_id", userID).
			Msg("arbiter call failed")
		return "", fmt.Errorf("%s: %w", a.arbiter, domain.ErrArbiterFailed)
	}
	if strings.TrimSpace(final) == "" {
		return "", fmt.Errorf("%s returned empty text: %w", a.arbiter, domain.ErrArbiterFailed)
	}
	return final, nil
}

// askParticipant never lets a participant take down the round: errors are
// captured in the result and an unexpected panic becomes a synthetic
// failure with its own marker.
func (a *Aggregator) askParticipant(ctx context.Context, model, prompt string) (result ParticipantResult) {
	result.Model = model
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Str("model", model).Interface("panic", r).
				Msg("participant task crashed")
			result.Text = ""
			result.Err = fmt.Errorf("participant %s crashed: %v", model, r)
		}
	}()

	text, err := a.client.CompleteChat(ctx, model,
		[]openai.Message{{Role: "user", Content: prompt}}, a.temperature, openai.TimeoutChat)
	if err != nil {
		a.logger.Warn().Err(err).Str("model", model).Msg("participant failed")
		result.Err = err
		return result
	}
	result.Text = text
	return result
}

func buildMetaPrompt(prompt string, results []ParticipantResult) string {
	var b strings.Builder
	b.WriteString("You are the chief AI arbiter. Several models answered the same user request; ")
	b.WriteString("analyze their answers and produce the single best final answer.\n")
	b.WriteString("Work strictly in steps:\n")
	b.WriteString("\nSTEP 1: Determine the correct answer from the original request and the answers below.\n")
	b.WriteString("STEP 2: Write an exhaustive, accurate, well-formatted final answer in your own words. Do not mention the other models in this part.\n")
	b.WriteString("STEP 3: After a `---` separator, briefly analyze which participants were right or wrong and why, consistent with your final answer.\n")
	b.WriteString("\n---\nORIGINAL USER REQUEST:\n")
	b.WriteString(prompt)
	b.WriteString("\n---\n\nPARTICIPANT ANSWERS FOR ANALYSIS:")
	for _, r := range results {
		text := r.Text
		if r.Failed() {
			text = failurePlaceholder
		}
		b.WriteString(fmt.Sprintf("\n\nAnswer from model (%s):\n%s\n---", r.Model, text))
	}
	b.WriteString("\n\nYOUR FINAL OUTPUT (perform STEP 2 and STEP 3):")
	return b.String()
}
