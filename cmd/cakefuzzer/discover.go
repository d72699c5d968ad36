package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zigrin-security/cakefuzzer/internal/introspect"
	"github.com/zigrin-security/cakefuzzer/internal/llm"
)

var routesCmd = &cobra.Command{
	Use:   "routes [openapi-file]",
	Short: "List path templates of an application",
	Long:  `Read the routes of an OpenAPI document and print them with fuzzing placeholders in place of path parameters.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		p, err := introspect.NewOpenAPIIntrospector(args[0])
		if err != nil {
			return err
		}
		routes, err := p.Routes(ctx)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(routes)
		}

		for _, r := range routes {
			fmt.Printf("%-7s %s\n", r.Method, r.Path)
		}
		printInfo("%d routes, %d unique paths", len(routes), len(introspect.Templates(routes)))
		return nil
	},
}

var payloadsCmd = &cobra.Command{
	Use:   "payloads",
	Short: "Work with payload pools",
}

var payloadsSuggestCmd = &cobra.Command{
	Use:   "suggest [category]",
	Short: "Ask the LLM provider for payloads",
	Long:  `Ask the configured LLM provider for payloads of a vulnerability class, one per line on stdout.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if v, _ := cmd.Flags().GetString("provider"); v != "" {
			config.Provider.Name = v
		}
		if v, _ := cmd.Flags().GetString("model"); v != "" {
			config.Provider.Model = v
		}
		if v, _ := cmd.Flags().GetString("api-key"); v != "" {
			config.Provider.APIKey = v
		}
		if v, _ := cmd.Flags().GetString("llm-url"); v != "" {
			config.Provider.BaseURL = v
		}

		provider, err := newProvider()
		if err != nil {
			return err
		}

		count, _ := cmd.Flags().GetInt("count")
		examples, _ := cmd.Flags().GetStringSlice("example")
		phrase := config.Execution.GUIDPhrase
		if cmd.Flags().Changed("phrase") {
			phrase, _ = cmd.Flags().GetString("phrase")
		}

		payloads, err := llm.SuggestPayloads(ctx, provider, llm.SuggestRequest{
			Category: args[0],
			Examples: examples,
			Count:    count,
			Phrase:   phrase,
		})
		if err != nil {
			return err
		}

		fmt.Println(strings.Join(payloads, "\n"))
		printSuccess("%d payloads from %s", len(payloads), provider.Name())
		return nil
	},
}

// newProvider defaults to OpenAI and falls back to OPENAI_API_KEY
func newProvider() (llm.Provider, error) {
	if config.Provider.Name == "" {
		config.Provider.Name = "openai"
	}
	if config.Provider.APIKey == "" && config.Provider.Name == "openai" {
		config.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return llm.NewProvider(config.Provider)
}

func init() {
	routesCmd.Flags().Bool("json", false, "Print routes as JSON")

	payloadsSuggestCmd.Flags().IntP("count", "n", 10, "Number of payloads")
	payloadsSuggestCmd.Flags().StringSlice("example", []string{}, "Payloads already in use")
	payloadsSuggestCmd.Flags().String("phrase", "", "GUID marker every payload must carry")
	payloadsSuggestCmd.Flags().StringP("provider", "p", "", "LLM provider (openai)")
	payloadsSuggestCmd.Flags().String("model", "", "LLM model to use")
	payloadsSuggestCmd.Flags().String("api-key", "", "API key for LLM provider")
	payloadsSuggestCmd.Flags().String("llm-url", "", "Base URL of an OpenAI-compatible endpoint")
}
