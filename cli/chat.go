package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/xiaoyuanzhu-com/hound/agent"
	"github.com/xiaoyuanzhu-com/hound/config"
	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/tools"
)

// Style definitions.
var (
	toolCallStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	toolResultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	doneStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

var (
	chatEntity   string
	chatMaxSteps int
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the agent one question",
	Long: `Send one message to the agent and stream its answer. The agent can list
and dismiss your proposals, read the clock, and call tools of the configured
MCP server.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := newModel()
		if err != nil {
			return err
		}

		store, err := openDB()
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		cfg := config.Get()
		entity := chatEntity
		if entity == "" {
			entity = cfg.UserID
		}

		executors := []tools.Executor{
			tools.NewBuiltinRegistry(tools.BuiltinOptions{EntityID: entity, Store: store}),
		}
		if cfg.MCPServerURL != "" || cfg.MCPServerCommand != "" {
			if mcp, err := connectMCP(cmd.Context(), cfg.MCPServerURL, cfg.MCPServerCommand); err != nil {
				log.Warn().Err(err).Msg("continuing without MCP tools")
			} else {
				defer mcp.Close()
				executors = append(executors, mcp)
			}
		}
		router := tools.NewRouter(executors...)

		maxSteps := chatMaxSteps
		if maxSteps <= 0 {
			maxSteps = cfg.AgentMaxSteps
		}
		loop := agent.NewLoop(model, agent.Config{MaxSteps: maxSteps, StepTimeout: cfg.AgentStepTimeout})

		events := loop.Run(cmd.Context(), agent.Request{
			System:   fmt.Sprintf("You are Hound, a helpful assistant for the user's task proposals. Current date and time: %s", time.Now().Format("2006-01-02 15:04:05 MST")),
			Messages: []llm.Turn{{Role: llm.RoleUser, Content: strings.Join(args, " ")}},
			Tools:    router.Schemas(),
			Executor: router,
		})

		failed := false
		out := cmd.OutOrStdout()
		for ev := range events {
			if _, ok := ev.(agent.ErrorEvent); ok {
				failed = true
			}
			renderEvent(out, ev)
		}
		if failed {
			return fmt.Errorf("agent run ended with an error")
		}
		return nil
	},
}

func connectMCP(ctx context.Context, url, command string) (*tools.MCPExecutor, error) {
	transport, err := tools.NewMCPTransport(url, command)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return tools.ConnectMCP(ctx, transport, appVersion)
}

// renderEvent prints one agent event for a terminal
func renderEvent(w io.Writer, ev agent.Event) {
	switch e := ev.(type) {
	case agent.TextEvent:
		fmt.Fprint(w, e.Content)
	case agent.ToolCallEvent:
		fmt.Fprintf(w, "\n%s %s\n", toolCallStyle.Render("→ "+e.Name), compactJSON(e.Args))
	case agent.ToolResultEvent:
		fmt.Fprintln(w, toolResultStyle.Render("← "+e.Name+" "+compactJSON(e.Result)))
	case agent.ErrorEvent:
		fmt.Fprintln(w, "\n"+errorStyle.Render("error: "+e.Message))
	case agent.DoneEvent:
		fmt.Fprintln(w, "\n"+doneStyle.Render("done"))
	}
}

func compactJSON(v map[string]any) string {
	if v == nil {
		return "{}"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

func init() {
	chatCmd.Flags().StringVar(&chatEntity, "entity", "", "entity whose proposals the tools act on (defaults to USER_ID)")
	chatCmd.Flags().IntVar(&chatMaxSteps, "max-steps", 0, "maximum model steps (defaults to AGENT_MAX_STEPS)")
	rootCmd.AddCommand(chatCmd)
}
