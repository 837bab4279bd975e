package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"beacon/internal/config"
	"beacon/internal/domain/models"
	"beacon/internal/domain/services"
	"beacon/internal/domain/services/ai"
	"beacon/pkg/logger"
)

// NewRelayCommand creates the relay command.
func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "relay <legal|volunteer|translator> <message>",
		Short: "Send one message to an assistant persona",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			persona, err := models.ParsePersona(args[0])
			if err != nil {
				return err
			}
			tag, err := services.ParseLanguage(lang)
			if err != nil {
				return err
			}

			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Level: "warn", Format: "console", Output: cmd.ErrOrStderr()})
			relay := ai.NewRelay(ai.NewLLMClient(ai.ConfigFrom(cfg.LLM), log), log)

			sess := models.Session{Language: tag}
			return runRelay(cmd, rootOpts, relay, sess, persona, strings.Join(args[1:], " "), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "en", "session language (en|hi)")

	return cmd
}

func runRelay(cmd *cobra.Command, opts *RootOptions, relay *ai.Relay, sess models.Session, persona models.Persona, message string, out io.Writer) error {
	resp, err := relay.Converse(cmd.Context(), sess, persona, message)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(out, resp)
	}
	fmt.Fprintln(out, resp.Reply)
	if resp.TranslatedReply != "" {
		fmt.Fprintf(out, "\n%s\n", resp.TranslatedReply)
	}
	return nil
}
