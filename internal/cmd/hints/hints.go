// Package hints provides actionable user guidance for CLI operations.
package hints

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agentstation/feedsync/internal/config"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
)

// Hint represents actionable user guidance.
type Hint struct {
	Message string   // Human-readable guidance message
	Command string   // Optional specific command to run
	URL     string   // Optional documentation link
	Tags    []string // For context-aware filtering
}

// New creates a new hint with the given message.
func New(message string) *Hint {
	return &Hint{Message: message}
}

// NewCommand creates a new hint with a specific command.
func NewCommand(message, command string) *Hint {
	return &Hint{Message: message, Command: command}
}

// NewURL creates a new hint with a documentation URL.
func NewURL(message, url string) *Hint {
	return &Hint{Message: message, URL: url}
}

// WithTags adds tags to the hint for context-aware filtering.
func (h *Hint) WithTags(tags ...string) *Hint {
	h.Tags = append(h.Tags, tags...)
	return h
}

// HasTag checks if the hint has a specific tag.
func (h *Hint) HasTag(tag string) bool {
	return slices.Contains(h.Tags, tag)
}

// String returns a string representation of the hint.
func (h *Hint) String() string {
	parts := []string{fmt.Sprintf("💡 %s", h.Message)}
	if h.Command != "" {
		parts = append(parts, fmt.Sprintf("   Run: %s", h.Command))
	}
	if h.URL != "" {
		parts = append(parts, fmt.Sprintf("   See: %s", h.URL))
	}
	return strings.Join(parts, "\n")
}

// Context provides information for generating contextual hints.
type Context struct {
	Command  string // Current command being executed
	Args     []string
	Err      error  // Failure of the command, nil on success
	Mode     string // App mode
	HasToken bool   // Whether an access token is configured
	BaseURL  string
}

// For builds the hint context of a command run under cfg.
func For(command string, args []string, err error, cfg *config.Config) Context {
	ctx := Context{Command: command, Args: args, Err: err}
	if cfg != nil {
		ctx.Mode = cfg.AppMode
		ctx.HasToken = cfg.AccessToken != ""
		ctx.BaseURL = cfg.BaseURL
	}
	return ctx
}

// Succeeded reports whether the command finished without error.
func (c Context) Succeeded() bool {
	return c.Err == nil
}

// Provider generates contextual hints based on the current context.
type Provider interface {
	GetHints(ctx Context) []*Hint
	Name() string
}

// ProviderFunc is an adapter to allow functions to be used as Providers.
type ProviderFunc func(Context) []*Hint

// GetHints calls the function.
func (f ProviderFunc) GetHints(ctx Context) []*Hint {
	return f(ctx)
}

// Name returns the function name (generic).
func (f ProviderFunc) Name() string {
	return "func"
}

// Registry manages hint providers and generates contextual hints.
type Registry struct {
	providers []Provider
	config    RegistryConfig
}

// RegistryConfig configures hint generation behavior.
type RegistryConfig struct {
	MaxHints    int      // Maximum number of hints to return
	ExcludeTags []string // Exclude hints with these tags
	Enabled     bool
}

// NewRegistry creates a new hint registry.
func NewRegistry() *Registry {
	return &Registry{
		config: RegistryConfig{MaxHints: 3, Enabled: true},
	}
}

// WithConfig sets the registry configuration.
func (r *Registry) WithConfig(config RegistryConfig) *Registry {
	r.config = config
	return r
}

// Register adds a hint provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.providers = append(r.providers, provider)
}

// RegisterFunc registers a function as a hint provider.
func (r *Registry) RegisterFunc(name string, fn func(Context) []*Hint) {
	r.Register(&namedProvider{name: name, fn: fn})
}

// GetHints generates hints for the given context.
func (r *Registry) GetHints(ctx Context) []*Hint {
	if !r.config.Enabled {
		return nil
	}

	var all []*Hint
	for _, provider := range r.providers {
		for _, hint := range provider.GetHints(ctx) {
			if !r.excluded(hint) {
				all = append(all, hint)
			}
		}
	}

	if r.config.MaxHints > 0 && len(all) > r.config.MaxHints {
		all = all[:r.config.MaxHints]
	}
	return all
}

func (r *Registry) excluded(hint *Hint) bool {
	return slices.ContainsFunc(r.config.ExcludeTags, hint.HasTag)
}

type namedProvider struct {
	name string
	fn   ProviderFunc
}

func (p *namedProvider) GetHints(ctx Context) []*Hint { return p.fn(ctx) }
func (p *namedProvider) Name() string                 { return p.name }

// TopUpURL is where exhausted credits are topped up.
const TopUpURL = "https://platform.valyu.ai/user/account/billing"

// Default returns a registry with the feedsync providers registered.
func Default() *Registry {
	r := NewRegistry()
	r.RegisterFunc("auth", authHints)
	r.RegisterFunc("credits", creditHints)
	r.RegisterFunc("connectivity", connectivityHints)
	r.RegisterFunc("next", nextStepHints)
	return r
}

func authHints(ctx Context) []*Hint {
	if !errors.IsSessionExpired(ctx.Err) && !errors.Is(ctx.Err, errors.ErrSignInRequired) {
		return nil
	}
	if ctx.HasToken {
		return []*Hint{New("Your access token was rejected; sign in again to get a fresh one").
			WithTags("auth", "troubleshooting")}
	}
	return []*Hint{NewCommand(
		"Valyu mode needs an access token",
		"export FEEDSYNC_ACCESS_TOKEN=<token>",
	).WithTags("auth", "setup")}
}

func creditHints(ctx Context) []*Hint {
	if !errors.IsInsufficientCredits(ctx.Err) {
		return nil
	}
	return []*Hint{NewURL("Top up credits, then retry", TopUpURL).WithTags("credits")}
}

func connectivityHints(ctx Context) []*Hint {
	if ctx.Succeeded() || !unreachable(ctx.Err) {
		return nil
	}
	hints := []*Hint{NewCommand(
		fmt.Sprintf("Could not reach %s; run a local feed API for development", ctx.BaseURL),
		"feedsync serve",
	).WithTags("troubleshooting", "development")}
	if ctx.Mode == constants.ModeValyu {
		hints = append(hints, NewCommand(
			"Use self-hosted mode with the local server",
			"feedsync "+ctx.Command+" --app-mode self-hosted --base-url "+constants.DefaultBaseURL,
		).WithTags("development"))
	}
	return hints
}

func nextStepHints(ctx Context) []*Hint {
	if !ctx.Succeeded() {
		return nil
	}
	switch ctx.Command {
	case "conflicts":
		country := "<country>"
		if len(ctx.Args) > 0 {
			country = fmt.Sprintf("%q", ctx.Args[0])
		}
		return []*Hint{NewCommand("Follow the answer as it is generated", "feedsync stream "+country).
			WithTags("next-step")}
	}
	return nil
}

// unreachable reports whether err means the feed API could not be reached
// or failed on its side.
func unreachable(err error) bool {
	var re *errors.ResourceError
	return errors.IsUnavailable(err) || (errors.As(err, &re) && re.Operation == "send")
}
