package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scribelab/pdfscribe/internal/job"
	"github.com/scribelab/pdfscribe/internal/language"
)

var (
	runOutput     string
	runEngine     string
	runLanguage   string
	runPages      string
	runOCROnly    bool
	runPrompt     string
	runPromptFile string
	runProvider   string
)

var runCmd = &cobra.Command{
	Use:   "run <pdf>",
	Short: "Process a PDF document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		input := args[0]

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		jobCfg, err := buildJobConfig(input)
		if err != nil {
			return err
		}

		proc := job.NewProcessor(st)
		proc.Configure(jobCfg)

		runID, err := proc.Start(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("run started", zap.String("run_id", runID), zap.String("input", input))

		// SIGINT requests cooperative cancellation; the worker acknowledges
		// with a stopped event after finishing its current unit of work.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		for {
			select {
			case <-sigCh:
				fmt.Fprintln(os.Stderr, "Stopping...")
				proc.Stop()
			case ev := <-proc.Events():
				switch ev.Type {
				case job.EventProgress:
					fmt.Printf("[%3.0f%%] %s\n", ev.Percent, ev.Status)
				case job.EventFinished:
					fmt.Printf("Done. Output written to %s\n", ev.OutputPath)
					return nil
				case job.EventStopped:
					fmt.Fprintln(os.Stderr, "Stopped.")
					return nil
				case job.EventError:
					return ev.Err
				}
			}
		}
	},
}

// buildJobConfig merges the run flags over the loaded configuration.
func buildJobConfig(input string) (job.Config, error) {
	jobCfg := job.Config{
		InputPath:     input,
		OutputPath:    runOutput,
		LanguageKey:   cfg.OCR.Language,
		OCROnly:       runOCROnly,
		Provider:      cfg.LLM.Provider,
		Prompt:        cfg.LLM.Prompt,
		LLMAPIKey:     cfg.LLM.APIKey,
		WordsPerBatch: cfg.LLM.WordsPerBatch,
		OCR:           cfg.OCR,
		Render:        cfg.Render,
	}

	if runEngine != "" {
		jobCfg.OCR.Engine = runEngine
	}
	if runLanguage != "" {
		if !language.Known(runLanguage) {
			zap.L().Warn("unknown language key, falling back to English", zap.String("language", runLanguage))
		}
		jobCfg.LanguageKey = runLanguage
	}
	if runProvider != "" {
		jobCfg.Provider = runProvider
	}
	if runPrompt != "" {
		jobCfg.Prompt = runPrompt
	}
	if runPromptFile != "" {
		data, err := os.ReadFile(runPromptFile)
		if err != nil {
			return job.Config{}, eris.Wrapf(err, "read prompt file %s", runPromptFile)
		}
		jobCfg.Prompt = strings.TrimSpace(string(data))
	}

	if runPages != "" {
		start, end, err := parsePageRange(runPages)
		if err != nil {
			return job.Config{}, err
		}
		jobCfg.StartPage = start
		jobCfg.EndPage = end
	}

	if jobCfg.OutputPath == "" {
		jobCfg.OutputPath = defaultOutputPath(input)
	}
	return jobCfg, nil
}

// parsePageRange parses "start-end"; end 0 means the last page. A bare
// number selects that single page.
func parsePageRange(s string) (int, int, error) {
	parts := strings.SplitN(s, "-", 2)
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, eris.Errorf("invalid page range %q", s)
	}
	if len(parts) == 1 {
		return start, start, nil
	}
	endStr := strings.TrimSpace(parts[1])
	if endStr == "" {
		return start, 0, nil
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return 0, 0, eris.Errorf("invalid page range %q", s)
	}
	return start, end, nil
}

// defaultOutputPath swaps the input extension for .txt.
func defaultOutputPath(input string) string {
	ext := ".txt"
	if i := strings.LastIndex(input, "."); i > 0 {
		return input[:i] + ext
	}
	return input + ext
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output file path (default: input with .txt extension)")
	runCmd.Flags().StringVar(&runEngine, "engine", "", "OCR engine: tesseract or vision")
	runCmd.Flags().StringVar(&runLanguage, "language", "", "document language display key (see 'pdfscribe languages')")
	runCmd.Flags().StringVar(&runPages, "pages", "", "page range, e.g. 2-5, 3, or 2- (to last page)")
	runCmd.Flags().BoolVar(&runOCROnly, "ocr-only", false, "skip LLM processing and write raw OCR text")
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "LLM instructions for processing the OCR text")
	runCmd.Flags().StringVar(&runPromptFile, "prompt-file", "", "read the LLM prompt from a file")
	runCmd.Flags().StringVar(&runProvider, "provider", "", `LLM provider, e.g. "OpenAI: gpt-4o" or "OpenRouter: <model>"`)

	rootCmd.AddCommand(runCmd)
}
