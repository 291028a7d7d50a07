// Command pipeline runs the catalog pipeline for one inference provider:
// extraction, license resolution, fusion, working-table sync, slug mapping,
// comparison and production promotion, selectable by stage letter.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	pipeline "github.com/modelatlas/pipeline"
	"github.com/modelatlas/pipeline/catalog"
	"github.com/modelatlas/pipeline/configs"
	"github.com/modelatlas/pipeline/network"
	"github.com/modelatlas/pipeline/schemas"
	"github.com/modelatlas/pipeline/store"
)

func main() {
	var (
		autoAll      bool
		noVenv       bool
		scriptsFlag  string
		rangeFlag    string
		providerFlag string
		configPath   string
		logLevel     string
	)
	flag.BoolVar(&autoAll, "auto-all", false, "run every stage")
	flag.StringVar(&scriptsFlag, "scripts", "", "stage letters to run, e.g. \"A,C\" (extra letters may follow as arguments)")
	flag.StringVar(&rangeFlag, "range", "", "inclusive stage range, e.g. \"A-E\" or \"--range A E\"")
	flag.BoolVar(&noVenv, "no-venv", false, "accepted for compatibility with the wrapper scripts; unused")
	flag.StringVar(&providerFlag, "provider", "", "inference provider: Google, Groq or OpenRouter")
	flag.StringVar(&configPath, "config", "", "path to the pipeline config file")
	flag.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flag.Parse()

	logger := pipeline.NewDefaultLogger(schemas.LogLevel(logLevel))

	credentials, err := configs.LoadCredentials(logger)
	if err != nil {
		logger.Error("failed to load credentials: %v", err)
		os.Exit(1)
	}
	if credentials.NonInteractive {
		logger.SetOutputType(pipeline.LoggerOutputTypeJSON)
	} else {
		logger.SetOutputType(pipeline.LoggerOutputTypePretty)
	}

	config, err := loadConfig(configPath, providerFlag)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	selected, err := selectStages(autoAll, scriptsFlag, rangeFlag, flag.Args())
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	runner := &pipeline.Runner{
		Config:      config,
		Credentials: credentials,
		Fetcher:     network.NewFetcher(network.FetcherConfig{}, logger),
		Logger:      logger,
	}
	if pipeline.NeedsStore(selected) {
		dsn := config.DatabaseDSN.GetValue()
		if dsn == "" {
			dsn = credentials.DatabaseDSN
		}
		dbStore, err := store.NewStore(dsn, logger)
		if err != nil {
			logger.Error("failed to open database: %v", err)
			os.Exit(1)
		}
		defer dbStore.Close()
		runner.Store = dbStore
	}

	orchestrator := pipeline.NewOrchestrator(config.Provider, config.StageTimeout(), logger)
	report := orchestrator.Run(context.Background(), runner.Stages(selected))
	if _, err := catalog.WriteReport(runner.OutputDir(), "run-report", report.Render()); err != nil {
		logger.Warn("failed to write run report: %v", err)
	}
	if report.Failed() {
		os.Exit(1)
	}
}

func loadConfig(configPath, providerFlag string) (*configs.PipelineConfig, error) {
	if configPath != "" {
		return configs.Load(configPath)
	}
	provider := schemas.InferenceProvider(providerFlag)
	switch provider {
	case schemas.Google, schemas.Groq, schemas.OpenRouter:
		return configs.Default(provider), nil
	}
	return nil, fmt.Errorf("no config file given and provider %q is not one of Google, Groq, OpenRouter", providerFlag)
}

// selectStages resolves the stage-selection flags into a letter set. With no
// selection flags at all, every stage runs.
func selectStages(autoAll bool, scriptsFlag, rangeFlag string, args []string) (map[string]bool, error) {
	selected := make(map[string]bool)
	if autoAll || (scriptsFlag == "" && rangeFlag == "") {
		for _, letter := range pipeline.StageOrder {
			selected[letter] = true
		}
		return selected, nil
	}

	letters := splitLetters(scriptsFlag)
	if rangeFlag != "" {
		start, end := rangeFlag, ""
		if parts := splitLetters(rangeFlag); len(parts) == 2 {
			start, end = parts[0], parts[1]
		} else if len(args) > 0 {
			// "--range A E" arrives as flag value "A" plus argument "E".
			start, end, args = rangeFlag, args[0], args[1:]
		}
		if end == "" {
			return nil, fmt.Errorf("range %q needs a start and an end stage", rangeFlag)
		}
		expanded, err := expandRange(strings.ToUpper(start), strings.ToUpper(end))
		if err != nil {
			return nil, err
		}
		letters = append(letters, expanded...)
	}
	letters = append(letters, args...)

	for _, letter := range letters {
		letter = strings.ToUpper(strings.TrimSpace(letter))
		if letter == "" {
			continue
		}
		if stageIndex(letter) < 0 {
			return nil, fmt.Errorf("unknown stage %q; stages are %s", letter, strings.Join(pipeline.StageOrder, " "))
		}
		selected[letter] = true
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no stages selected")
	}
	return selected, nil
}

func splitLetters(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '-' || r == ':'
	})
	return fields
}

func expandRange(start, end string) ([]string, error) {
	from, to := stageIndex(start), stageIndex(end)
	if from < 0 || to < 0 || from > to {
		return nil, fmt.Errorf("invalid stage range %s-%s", start, end)
	}
	return pipeline.StageOrder[from : to+1], nil
}

func stageIndex(letter string) int {
	for i, known := range pipeline.StageOrder {
		if known == letter {
			return i
		}
	}
	return -1
}
