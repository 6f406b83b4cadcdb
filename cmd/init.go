package cmd

import (
	"fmt"
	"os"

	"github.com/josephgoksu/obbywatch/internal/config"
	"github.com/josephgoksu/obbywatch/internal/store"
	"github.com/spf13/cobra"
)

const defaultWatchFile = `# obbywatch watch list — one glob per line, "#" starts a comment.
# A trailing "/" matches a directory and everything beneath it.
# An empty (or all-comment) file puts obbywatch into strict mode: nothing
# is watched until at least one pattern is added here.
**/*.md
**/*.go
notes/
`

const defaultIgnoreFile = `# obbywatch ignore list — same grammar as the watch file.
.git/
.obbywatch/
node_modules/
vendor/
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .obbywatch layout in the current project",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := config.GetProjectContext()
	layout := config.ResolveLayout(ctx.RootPath)

	if err := layout.EnsureDirs(); err != nil {
		return fmt.Errorf("create layout: %w", err)
	}

	if _, err := os.Stat(layout.WatchFile); os.IsNotExist(err) {
		if err := os.WriteFile(layout.WatchFile, []byte(defaultWatchFile), 0o644); err != nil {
			return fmt.Errorf("write watch file: %w", err)
		}
	}
	if _, err := os.Stat(layout.IgnoreFile); os.IsNotExist(err) {
		if err := os.WriteFile(layout.IgnoreFile, []byte(defaultIgnoreFile), 0o644); err != nil {
			return fmt.Errorf("write ignore file: %w", err)
		}
	}

	st, err := store.Open(layout.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if err := st.SeedConfigDefaults(defaultConfig); err != nil {
		return fmt.Errorf("seed config: %w", err)
	}

	fmt.Printf("Initialized obbywatch project at %s\n", ctx.RootPath)
	fmt.Printf("  watch list:  %s\n", layout.WatchFile)
	fmt.Printf("  ignore list: %s\n", layout.IgnoreFile)
	fmt.Printf("  database:    %s\n", layout.DatabasePath)
	return nil
}

// defaultConfig seeds config_kv with the project-local scheduler and
// living-note settings: batch interval, living-note mode, and the
// summarizer batch size cap. cmd/serve.go reads these back at startup
// (livingNoteModeFromConfig, applyBatchConfigDefaults) and the settings
// API writes living_note_mode back on change. LLM provider/model/API key
// stay out of this table and come from viper instead (see
// llmConfigFromViper) since credentials don't belong in a project-local
// SQLite file that may get committed.
var defaultConfig = map[string]string{
	"batch_interval_minutes": "15",
	"living_note_mode":       "daily",
	"summarizer_batch_cap":   "50",
}
