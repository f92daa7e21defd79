// Package pipeline turns a natural-language request into a plan. Each
// request walks an ordered set of stages and stops at the first one that
// produces a result: cache, system query resolver, simple-query
// heuristics, then inference with a rule-based fallback. Failures come
// back as errored plans; nothing here panics.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deskhand/cache"
	"deskhand/command"
	"deskhand/conversation"
	"deskhand/internal/arith"
	"deskhand/internal/jsonx"
	"deskhand/llm"
	"deskhand/sysquery"
)

// Chatter is the inference surface the pipeline needs from the gateway.
type Chatter interface {
	ChatWithOptions(ctx context.Context, messages []llm.ChatMessage, opts llm.ChatOptions) (llm.Result, error)
	HasKeys() bool
}

// Pipeline orchestrates the request stages. Safe for concurrent use; the
// collaborators guard their own state.
type Pipeline struct {
	cache    *cache.ResponseCache
	resolver sysquery.Resolver
	convo    *conversation.Context
	gateway  Chatter
	log      zerolog.Logger
}

// New wires the pipeline. resolver and gateway may be nil; the matching
// stages are then skipped (a nil gateway degrades to rule-based planning).
func New(c *cache.ResponseCache, resolver sysquery.Resolver, convo *conversation.Context, gateway Chatter, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cache:    c,
		resolver: resolver,
		convo:    convo,
		gateway:  gateway,
		log:      log,
	}
}

// Handle processes one request to a terminal plan. The returned plan is
// never nil; failures are carried in the plan's error field.
func (p *Pipeline) Handle(ctx context.Context, query string) *command.Plan {
	requestID := uuid.NewString()
	log := p.log.With().Str("request_id", requestID).Logger()

	query = strings.TrimSpace(query)
	if query == "" {
		return command.ErrorPlan("empty request")
	}
	log.Info().Str("query", preview(query)).Msg("request received")

	// Stage 1: cache.
	if plan := p.CacheCheck(query); plan != nil {
		log.Info().Msg("cache hit")
		return plan
	}

	// Stage 2: local system queries never reach inference.
	if p.resolver != nil {
		if a := p.resolver.Resolve(ctx, query); a != nil {
			log.Info().Msg("resolved as system query")
			plan := &command.Plan{Description: a.Description, SystemQuery: a.SystemQuery}
			p.finish(query, plan)
			return plan
		}
	}

	// Stage 3: greetings, arithmetic, help.
	if plan := p.simpleAnswer(query); plan != nil {
		log.Info().Msg("resolved by simple-query heuristics")
		p.finish(query, plan)
		return plan
	}

	// Stage 4/5: inference with conversation context.
	plan := p.infer(ctx, query, log)
	p.finish(query, plan)
	return plan
}

// CacheCheck returns the cached plan for a query, or nil on a miss. The
// IPC surface exposes this directly for cheap probe requests.
func (p *Pipeline) CacheCheck(query string) *command.Plan {
	if p.cache == nil {
		return nil
	}
	entry := p.cache.Get(query)
	if entry == nil {
		return nil
	}
	plan, err := planFromMap(entry)
	if err != nil {
		p.log.Warn().Err(err).Msg("cached entry undecodable, treating as miss")
		return nil
	}
	return plan
}

// finish records a terminal plan: cache write and conversation append.
// Errored and fallback plans are not cached; fallback plans would mask
// the gateway coming back.
func (p *Pipeline) finish(query string, plan *command.Plan) {
	if plan.IsError() {
		return
	}
	if p.cache != nil && !plan.FallbackMode {
		if entry, err := planToMap(plan); err == nil {
			p.cache.Set(query, entry)
		}
	}
	if p.convo != nil {
		p.convo.AddUserMessage(query)
		p.convo.AddAssistantMessage(plan.Description)
	}
}

var greetingAnswers = map[string]string{
	"hi":           "Hello! What can I do for you?",
	"hello":        "Hello! What can I do for you?",
	"hey":          "Hey there! What can I do for you?",
	"good morning": "Good morning! What can I do for you?",
	"thanks":       "You're welcome!",
	"thank you":    "You're welcome!",
}

const helpText = `I can control your computer and answer questions. Try:
- "open firefox" to launch an application
- "search for golang tutorials" to run a web search
- "what time is it" for system questions
- "take a screenshot"
- plain questions for a direct answer`

// simpleAnswer handles queries that never justify an inference call.
func (p *Pipeline) simpleAnswer(query string) *command.Plan {
	q := strings.ToLower(strings.TrimRight(strings.TrimSpace(query), "!. "))

	if answer, ok := greetingAnswers[q]; ok {
		return command.AnswerPlan(answer)
	}
	if q == "help" || q == "what can you do" {
		return command.AnswerPlan(helpText)
	}

	// Arithmetic is whitelist-gated; anything beyond digits and operators
	// falls through to inference.
	if arith.IsExpression(query) {
		value, err := arith.Eval(query)
		if err != nil {
			return command.AnswerPlan(fmt.Sprintf("I can't evaluate that: %v", err))
		}
		plan := command.AnswerPlan(fmt.Sprintf("%s = %s", strings.TrimSpace(query), arith.Format(value)))
		plan.SystemQuery = true
		return plan
	}
	return nil
}

// stepKeywords mark requests that usually need a decomposed, multi-step
// plan. The classifier only annotates the prompt, it never blocks.
var stepKeywords = []string{
	"download and install",
	" and then ",
	"after that",
	"first ",
	"step by step",
}

func needsSteps(q string) bool {
	lower := strings.ToLower(q)
	for _, kw := range stepKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// freshnessKeywords mark queries whose answer changes over time; those
// prefer the search-capable provider.
var freshnessKeywords = []string{
	"latest", "news", "current", "today", "right now",
	"weather", "price", "stock", "score",
}

func prefersSearch(q string) bool {
	lower := strings.ToLower(q)
	for _, kw := range freshnessKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// infer runs the gateway and shapes its response into a plan. Gateway
// exhaustion degrades to the rule-based planner.
func (p *Pipeline) infer(ctx context.Context, query string, log zerolog.Logger) *command.Plan {
	if p.gateway == nil || !p.gateway.HasKeys() {
		log.Warn().Msg("no inference available, using rule-based planner")
		return p.fallback(query)
	}

	var messages []llm.ChatMessage
	if p.convo != nil {
		if needsSteps(query) {
			messages = p.convo.AnnotateForSteps(query)
		} else {
			messages = p.convo.ContextForRequest(query)
		}
	} else {
		messages = []llm.ChatMessage{llm.UserMessage(query)}
	}

	result, err := p.gateway.ChatWithOptions(ctx, messages, llm.ChatOptions{
		PreferSearch: prefersSearch(query),
	})
	if err != nil {
		log.Warn().Err(err).Msg("inference failed, using rule-based planner")
		return p.fallback(query)
	}

	return p.shapeResponse(result, log)
}

// shapeResponse extracts a plan from the model output. Output that is not
// JSON at all becomes a conversational answer rather than an error.
func (p *Pipeline) shapeResponse(result llm.Result, log zerolog.Logger) *command.Plan {
	raw, err := jsonx.Extract(result.Content)
	if err != nil {
		log.Debug().Err(err).Msg("no JSON in response, wrapping as answer")
		return command.AnswerPlan(strings.TrimSpace(result.Content))
	}

	var plan command.Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		log.Debug().Err(err).Msg("response JSON not a plan, wrapping as answer")
		return command.AnswerPlan(strings.TrimSpace(result.Content))
	}
	if plan.Description == "" && len(plan.Steps) == 0 {
		return command.AnswerPlan(strings.TrimSpace(result.Content))
	}

	plan.Metadata = map[string]any{
		"provider": result.Provider,
		"model":    result.Model,
	}
	return &plan
}

// fallback is the deterministic rule-based planner used when inference is
// unavailable. First matching verb prefix wins; anything unmatched gets
// the help text.
func (p *Pipeline) fallback(query string) *command.Plan {
	q := strings.ToLower(strings.TrimSpace(query))

	var plan *command.Plan
	switch {
	case strings.HasPrefix(q, "open "):
		app := strings.TrimSpace(strings.TrimPrefix(q, "open "))
		plan = launchPlan(app)

	case strings.HasPrefix(q, "search for "), strings.HasPrefix(q, "search "):
		terms := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(q, "search for "), "search "))
		plan = browsePlan(sysquery.SearchURL(terms), "Searching the web for "+terms)

	case strings.HasPrefix(q, "go to "):
		site := strings.TrimSpace(strings.TrimPrefix(q, "go to "))
		plan = browsePlan(site, "Going to "+site)

	case strings.HasPrefix(q, "close"):
		plan = &command.Plan{
			Description:   "Closing the focused window",
			Steps:         []command.Step{{Op: command.OpKeyCombo, Combo: "alt+F4"}},
			EstimatedTime: 1,
		}

	case strings.HasPrefix(q, "screenshot"), strings.HasPrefix(q, "take a screenshot"):
		plan = &command.Plan{
			Description:   "Taking a screenshot",
			Steps:         []command.Step{{Op: command.OpScreenshot, Filename: screenshotName()}},
			EstimatedTime: 1,
		}

	case strings.HasPrefix(q, "type "):
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(query), "type "))
		plan = &command.Plan{
			Description:   "Typing the requested text",
			Steps:         []command.Step{{Op: command.OpType, Text: text}},
			EstimatedTime: 1,
		}

	default:
		return command.AnswerPlan(helpText)
	}

	plan.FallbackMode = true
	return plan
}

// launchPlan opens an application through the desktop launcher: launcher
// key, app name, Return.
func launchPlan(app string) *command.Plan {
	return &command.Plan{
		Description: "Opening " + app,
		Steps: []command.Step{
			{Op: command.OpKey, Key: "super"},
			{Op: command.OpWait, Seconds: 1},
			{Op: command.OpType, Text: app},
			{Op: command.OpWait, Seconds: 0.5},
			{Op: command.OpKey, Key: "Return"},
		},
		EstimatedTime: 4,
	}
}

// browsePlan opens the browser and navigates to a target.
func browsePlan(target, description string) *command.Plan {
	steps := launchPlan("firefox").Steps
	steps = append(steps,
		command.Step{Op: command.OpWait, Seconds: 2},
		command.Step{Op: command.OpKeyCombo, Combo: "ctrl+l"},
		command.Step{Op: command.OpType, Text: target},
		command.Step{Op: command.OpKey, Key: "Return"},
	)
	return &command.Plan{Description: description, Steps: steps, EstimatedTime: 8}
}

func screenshotName() string {
	return "screenshot-" + time.Now().Format("20060102-150405") + ".png"
}

func planToMap(p *command.Plan) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func planFromMap(m map[string]any) (*command.Plan, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var p command.Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func preview(s string) string {
	if len(s) > 80 {
		return s[:80]
	}
	return s
}
