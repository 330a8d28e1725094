package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fkhayef/teamtasks/internal/group"
	"github.com/fkhayef/teamtasks/internal/legacy"
	"github.com/fkhayef/teamtasks/internal/task"
	"github.com/fkhayef/teamtasks/internal/user"
)

var importCmd = &cobra.Command{
	Use:   "import [export-file]",
	Short: "Import a legacy export of users, groups and tasks",
	Long: `Import a v0 export (JSON or YAML) of the old document store.

Legacy task fields are normalized on the way in. Records whose id already
exists are skipped, so the command can be rerun.

Examples:
  teamtasks import export.json
  teamtasks import backup.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	exp, err := legacy.Decode(f)
	if err != nil {
		return err
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	importer := legacy.NewImporter(
		user.NewRepository(a.db),
		group.NewRepository(a.db),
		task.NewRepository(a.db),
		a.logger,
	)
	report, err := importer.Import(cmd.Context(), exp)
	if err != nil {
		return fmt.Errorf("import stopped: %w", err)
	}

	a.logger.Info("import finished",
		zap.Int("users", report.Users),
		zap.Int("groups", report.Groups),
		zap.Int("tasks", report.Tasks),
		zap.Int("skipped", report.Skipped),
		zap.Int("violations", report.Violations),
	)
	return nil
}
