/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/obbywatch/internal/agent"
	"github.com/josephgoksu/obbywatch/internal/config"
	"github.com/josephgoksu/obbywatch/internal/eventbus"
	"github.com/josephgoksu/obbywatch/internal/insights"
	"github.com/josephgoksu/obbywatch/internal/livingnote"
	"github.com/josephgoksu/obbywatch/internal/llm"
	"github.com/josephgoksu/obbywatch/internal/patterns"
	"github.com/josephgoksu/obbywatch/internal/semanticindex"
	"github.com/josephgoksu/obbywatch/internal/server"
	"github.com/josephgoksu/obbywatch/internal/sse"
	"github.com/josephgoksu/obbywatch/internal/store"
	"github.com/josephgoksu/obbywatch/internal/summarizer"
	"github.com/josephgoksu/obbywatch/internal/tracker"
	"github.com/josephgoksu/obbywatch/internal/watch"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start watching the project and serve the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

// livingNoteModeFromConfig reads the living-note mode init.go seeds into
// config_kv, falling back to daily mode if unset or invalid. The settings
// API (handleLivingNoteSettingsSet) writes back to the same key, so a
// restart picks up whatever the client last configured.
func livingNoteModeFromConfig(st *store.Store) livingnote.Mode {
	v, ok, err := st.GetConfig("living_note_mode")
	if err != nil || !ok {
		return livingnote.ModeDaily
	}
	mode := livingnote.Mode(v)
	if mode != livingnote.ModeSingle && mode != livingnote.ModeDaily {
		return livingnote.ModeDaily
	}
	return mode
}

// applyBatchConfigDefaults overrides the BatchSummarizer's scheduler
// interval and per-pass diff cap from the config_kv rows init.go seeds,
// leaving the package defaults in place for anything unset or malformed.
func applyBatchConfigDefaults(st *store.Store, batch *summarizer.BatchSummarizer) {
	if v, ok, err := st.GetConfig("batch_interval_minutes"); err == nil && ok {
		if minutes, convErr := strconv.Atoi(v); convErr == nil {
			batch.SetTick(time.Duration(minutes) * time.Minute)
		}
	}
	if v, ok, err := st.GetConfig("summarizer_batch_cap"); err == nil && ok {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			batch.SetBatchCap(n)
		}
	}
}

// llmConfigFromViper builds the process-wide LLM config from viper keys —
// llm.provider, llm.model, llm.apiKey, llm.baseURL — left out of config_kv
// since API credentials don't belong in the project-local SQLite store.
func llmConfigFromViper() (llm.Config, error) {
	providerStr := viper.GetString("llm.provider")
	if providerStr == "" {
		providerStr = "openai"
	}
	provider, err := llm.ValidateProvider(providerStr)
	if err != nil {
		return llm.Config{}, err
	}
	return llm.Config{
		Provider: provider,
		Model:    viper.GetString("llm.model"),
		APIKey:   viper.GetString("llm.apiKey"),
		BaseURL:  viper.GetString("llm.baseURL"),
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := config.GetProjectContext()
	layout := config.ResolveLayout(ctx.RootPath)
	if err := layout.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure layout: %w", err)
	}

	st, err := store.Open(layout.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	matcher := patterns.New(layout.Root, layout.WatchFile, layout.IgnoreFile)
	bus := eventbus.New(st)
	hub := sse.New()
	idx := semanticindex.New(st)

	note := livingnote.New(layout.NotesDir, livingNoteModeFromConfig(st))

	llmCfg, err := llmConfigFromViper()
	if err != nil {
		return fmt.Errorf("llm config: %w", err)
	}
	chatSummarizer := llm.NewChatSummarizer(llmCfg)
	batch := summarizer.New(st, chatSummarizer, idx, note, layout.SummariesDir)
	applyBatchConfigDefaults(st, batch)

	insightsRegistry := insights.NewRegistry()
	insights.RegisterBuiltins(insightsRegistry)

	agentRegistry := agent.NewRegistry(
		agent.NewNotesSearchTool(idx),
		agent.NewHistoryTool(st),
	)
	cancelSvc := agent.NewCancellationService()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	bridgeCh, unsubscribe := bus.Subscribe(64)
	defer unsubscribe()
	go bridgeFileChangesToSSE(runCtx, bridgeCh, hub)

	go batch.Run(runCtx)

	srv := server.New(serveAddr, server.Deps{
		Layout:    layout,
		Store:     st,
		Matcher:   matcher,
		Bus:       bus,
		Hub:       hub,
		Batch:     batch,
		Index:     idx,
		Note:      note,
		Insights:  insightsRegistry,
		CancelSvc: cancelSvc,
		Registry:  agentRegistry,
		NewOrchestrator: func() (*agent.Orchestrator, error) {
			return agent.New(llmCfg, agentRegistry), nil
		},
		NewWatcher: func() *watch.Watcher {
			trk := tracker.New(layout.Root, st, bus.Publish)
			return watch.New(layout.Root, matcher, trk.HandleChange)
		},
		AllowedOrigins: viper.GetStringSlice("server.allowedOrigins"),
	})

	errCh := make(chan error, 1)
	go srv.Start(runCtx, errCh)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		cancelRun()
		return err
	case <-sigCh:
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		cancelRun()
	}

	return nil
}

// bridgeFileChangesToSSE republishes every EventBus observation onto the
// SSE hub as a file_updated event, the connective tissue between C6 and
// C10 the server package itself does not perform.
func bridgeFileChangesToSSE(ctx context.Context, ch <-chan store.FileChange, hub *sse.Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case fc, ok := <-ch:
			if !ok {
				return
			}
			hub.PublishFileUpdated(sse.FileUpdatePayload{
				Type:      string(fc.ChangeType),
				FilePath:  fc.FilePath,
				Timestamp: fc.Timestamp,
			})
		}
	}
}
