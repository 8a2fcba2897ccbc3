package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xiaoyuanzhu-com/hound/config"
	"github.com/xiaoyuanzhu-com/hound/inference"
	"github.com/xiaoyuanzhu-com/hound/models"
	"gopkg.in/yaml.v3"
)

var (
	inferSource      string
	inferSender      string
	inferSubject     string
	inferChannel     string
	inferChannelType string
	inferOutput      string
)

var inferCmd = &cobra.Command{
	Use:   "infer [message]",
	Short: "Run task inference on one message",
	Long: `Classify a message and, when it looks like a task, extract a proposal.

The message is taken from the arguments, or read from stdin when no arguments
are given. Nothing is stored. The result is printed as JSON (default) or YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(inferOutput)
		if format != "json" && format != "yaml" {
			return fmt.Errorf("unsupported output format %q (use json or yaml)", inferOutput)
		}

		source, err := models.ParseSource(inferSource)
		if err != nil {
			return err
		}

		content := strings.Join(args, " ")
		if content == "" {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			content = string(raw)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return fmt.Errorf("message is empty")
		}

		model, err := newModel()
		if err != nil {
			return err
		}

		cfg := config.Get()
		pipeline := inference.NewPipeline(
			inference.NewClassifier(model, cfg.ClassifierMaxTokens),
			inference.NewExtractor(model),
			inference.Options{Threshold: cfg.ConfidenceThreshold},
		)

		msg := models.MessageContext{
			Source:      source,
			Content:     content,
			Sender:      inferSender,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Channel:     inferChannel,
			ChannelType: inferChannelType,
			Subject:     inferSubject,
		}

		proposal := pipeline.Build(cmd.Context(), msg)
		return writeResult(cmd.OutOrStdout(), format, map[string]any{"proposal": proposal})
	},
}

// writeResult prints v as indented JSON or as YAML with the JSON field names
func writeResult(w io.Writer, format string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	inferCmd.Flags().StringVar(&inferSource, "source", "slack", "message source (slack or gmail)")
	inferCmd.Flags().StringVar(&inferSender, "sender", "unknown", "message sender")
	inferCmd.Flags().StringVar(&inferSubject, "subject", "", "email subject")
	inferCmd.Flags().StringVar(&inferChannel, "channel", "", "chat channel")
	inferCmd.Flags().StringVar(&inferChannelType, "channel-type", "", "chat channel type (channel, im, ...)")
	inferCmd.Flags().StringVarP(&inferOutput, "output", "o", "json", "output format (json or yaml)")
	rootCmd.AddCommand(inferCmd)
}
