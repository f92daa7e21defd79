// Package conversation manages the bounded, multi-persona chat history that
// backs every gateway request.
//
// Information Hiding:
// - History storage and trimming policy hidden behind the Context API
// - System prompt assembly (persona + format rules) encapsulated
// - Thread-safe via an internal mutex

package conversation

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"deskhand/llm"
)

// MaxContentLength caps message content at creation. Longer content is
// truncated irreversibly and the truncation logged.
const MaxContentLength = 8000

// Defaults for history bounds.
const (
	DefaultMaxMessages       = 50
	DefaultMaxTokensEstimate = 8000
)

// Message is a single conversation entry. Content is capped at creation.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// formatRules is the response contract shared by every persona: answer
// directly or emit an action plan, always as JSON.
const formatRules = `You help users control their computer through natural language.

You can:
1. Answer questions directly with {"description": "your answer"}
2. Control the computer with action plans:
   {"plan": [{"action": "click", "location": [x,y]}, {"action": "type", "text": "text"}, {"action": "key", "key": "Return"}], "description": "what this does", "estimated_time": N}

Available actions:
- click: {"action": "click", "location": [x, y]} - Click at screen coordinates
- type: {"action": "type", "text": "text"} - Type text
- key: {"action": "key", "key": "KeyName"} - Press a key (Return, Tab, Escape, Super_L, Alt+F4, etc.)
- wait: {"action": "wait", "seconds": N} - Wait N seconds
- drag: {"action": "drag", "start": [x1, y1], "end": [x2, y2]} - Drag from start to end

Guidelines:
- For simple questions (math, greetings, info), respond with just {"description": "answer"}
- For computer control tasks, provide a detailed plan with steps
- Always respond with valid JSON`

// webSearchAddition is appended when freshness-sensitive answers are wanted.
const webSearchAddition = `

You have access to current information. When asked about current events,
real-time data, or anything that may have changed since your training,
provide the most accurate answer you can and say so when unsure.`

// Personas map persona names to the tone line that heads the system prompt.
var personas = map[string]string{
	"default":      "You are a capable, intelligent desktop assistant.",
	"concise":      "You are a desktop assistant. Keep every answer as short as it can be while staying correct.",
	"friendly":     "You are a warm, encouraging desktop assistant. Keep a light, conversational tone.",
	"professional": "You are a precise, businesslike desktop assistant. No small talk, no filler.",
}

// PersonaNames returns the fixed set of accepted persona names.
func PersonaNames() []string {
	names := make([]string, 0, len(personas))
	for name := range personas {
		names = append(names, name)
	}
	return names
}

// Context holds the system message and a bounded rolling history.
type Context struct {
	mu sync.Mutex

	system          Message
	history         []Message
	persona         string
	enableWebSearch bool

	maxMessages  int
	maxTokensEst int

	sessionStart time.Time
	totalAdded   int

	log zerolog.Logger
}

// Option configures a Context.
type Option func(*Context)

// WithMaxMessages bounds the history length.
func WithMaxMessages(n int) Option {
	return func(c *Context) { c.maxMessages = n }
}

// WithMaxTokensEstimate bounds the estimated token budget (chars/4).
func WithMaxTokensEstimate(n int) Option {
	return func(c *Context) { c.maxTokensEst = n }
}

// WithWebSearchPrompt toggles the freshness addition to the system prompt.
func WithWebSearchPrompt(enabled bool) Option {
	return func(c *Context) { c.enableWebSearch = enabled }
}

// New creates a context with the default persona.
func New(log zerolog.Logger, opts ...Option) *Context {
	c := &Context{
		persona:         "default",
		enableWebSearch: true,
		maxMessages:     DefaultMaxMessages,
		maxTokensEst:    DefaultMaxTokensEstimate,
		sessionStart:    time.Now(),
		log:             log,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.system = c.buildSystemMessage(c.persona)
	return c
}

// buildSystemMessage assembles persona tone + format rules (+ web search).
func (c *Context) buildSystemMessage(persona string) Message {
	prompt := personas[persona] + "\n\n" + formatRules
	if c.enableWebSearch {
		prompt += webSearchAddition
	}
	return Message{Role: "system", Content: prompt, Timestamp: time.Now()}
}

// SetPersonality rebuilds the system prompt from the named persona.
// Unknown names are rejected with no mutation.
func (c *Context) SetPersonality(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := personas[name]; !ok {
		c.log.Warn().Str("persona", name).Msg("unknown persona rejected")
		return false
	}
	c.persona = name
	c.system = c.buildSystemMessage(name)
	c.log.Info().Str("persona", name).Msg("persona changed")
	return true
}

// Persona returns the active persona name.
func (c *Context) Persona() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persona
}

// AddUserMessage appends a user message and trims. Empty content is a
// silent no-op so callers may invoke it unconditionally after an exchange.
func (c *Context) AddUserMessage(content string) {
	c.add("user", content)
}

// AddAssistantMessage appends an assistant message and trims. Empty content
// is a silent no-op.
func (c *Context) AddAssistantMessage(content string) {
	c.add("assistant", content)
}

func (c *Context) add(role, content string) {
	if content == "" {
		return
	}
	if len(content) > MaxContentLength {
		c.log.Warn().
			Str("role", role).
			Int("original_len", len(content)).
			Msg("message content truncated")
		content = truncateAtRune(content, MaxContentLength)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, Message{Role: role, Content: content, Timestamp: time.Now()})
	c.totalAdded++

	if len(c.history) > c.maxMessages {
		c.history = c.history[len(c.history)-c.maxMessages:]
	}
	c.trimToTokenBudget()
}

// truncateAtRune cuts s to at most max bytes without splitting a rune.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// trimToTokenBudget evicts oldest history entries while the chars/4
// estimate over system+history exceeds the budget. The last exchange (two
// messages) always survives, even over budget. Caller holds c.mu.
func (c *Context) trimToTokenBudget() {
	for len(c.history) > 2 {
		total := len(c.system.Content)
		for _, m := range c.history {
			total += len(m.Content)
		}
		if total/4 <= c.maxTokensEst {
			break
		}
		c.history = c.history[1:]
		c.log.Debug().Msg("trimmed oldest message to stay within token budget")
	}
}

// Messages returns the system message followed by history, in the gateway's
// wire format.
func (c *Context) Messages() []llm.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messagesLocked()
}

func (c *Context) messagesLocked() []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(c.history)+1)
	out = append(out, llm.ChatMessage{Role: c.system.Role, Content: c.system.Content})
	for _, m := range c.history {
		out = append(out, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// ContextForRequest returns system + trimmed history + the new user
// message, without persisting anything. Callers persist the exchange via
// AddUserMessage/AddAssistantMessage only after it succeeds.
func (c *Context) ContextForRequest(userMessage string) []llm.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(c.messagesLocked(), llm.UserMessage(userMessage))
}

// Clear resets history and the session clock, keeping the system message.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.sessionStart = time.Now()
	c.log.Info().Msg("conversation context cleared")
}

// History returns a copy of the current history (system message excluded).
func (c *Context) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.history...)
}

// Import replaces history with previously exported messages, trimming to
// the configured bounds. System entries replace the system message.
func (c *Context) Import(history []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = nil
	for _, m := range history {
		if m.Role == "system" {
			c.system = m
			continue
		}
		c.history = append(c.history, m)
	}
	if len(c.history) > c.maxMessages {
		c.history = c.history[len(c.history)-c.maxMessages:]
	}
	c.trimToTokenBudget()
	c.log.Info().Int("messages", len(c.history)).Msg("conversation history imported")
}

// Summary describes the current conversation state.
type Summary struct {
	MessageCount    int           `json:"message_count"`
	TotalProcessed  int           `json:"total_messages_processed"`
	EstimatedTokens int           `json:"estimated_tokens"`
	SessionDuration time.Duration `json:"session_duration"`
	Persona         string        `json:"persona"`
}

// Summary returns a snapshot of conversation statistics.
func (c *Context) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := len(c.system.Content)
	for _, m := range c.history {
		total += len(m.Content)
	}
	return Summary{
		MessageCount:    len(c.history),
		TotalProcessed:  c.totalAdded,
		EstimatedTokens: total / 4,
		SessionDuration: time.Since(c.sessionStart),
		Persona:         c.persona,
	}
}

// AnnotateForSteps returns the request messages with a multi-step
// decomposition hint appended to the system prompt. The stored system
// message is untouched.
func (c *Context) AnnotateForSteps(userMessage string) []llm.ChatMessage {
	msgs := c.ContextForRequest(userMessage)
	msgs[0].Content += "\n\nThe user's request likely needs multiple steps. " +
		"Decompose it into an ordered plan; include waits between application launches."
	return msgs
}
