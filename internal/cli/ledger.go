package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wikimovimentobrasil/wikimotivos/internal/ledger"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

// ledgerCmd represents the ledger command
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and migrate the vote ledgers",
	Long: `Inspect and migrate the "no motif" and "unknown motif" vote ledgers.

Logs:
  nomotifs        works voted as depicting no motif
  unknownmotifs   works voted as depicting a motif that could not be identified`,
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <log>",
	Short: "Print a vote log as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := parseLogName(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := ledger.Open(cfg.Ledger)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		l := ledger.New(store, nil, nil)
		defer func() { _ = l.Close() }()

		votes, err := l.ReadAll(cmd.Context(), log)
		if err != nil {
			return err
		}
		return writeVotes(cmd.OutOrStdout(), votes)
	},
}

var ledgerImportCmd = &cobra.Command{
	Use:   "import <log>",
	Short: "Copy a JSON vote log into the SQLite ledger",
	Long: `Read a vote log from the JSON ledger directory and append every vote
to the SQLite ledger at ledger.sqlite_path.

Subjects are imported in sorted order; votes keep their original order.

Example:
  wikimotivos ledger import nomotifs
  wikimotivos ledger import unknownmotifs --sqlite ./data/ledger.db`,
	Args: cobra.ExactArgs(1),
	RunE: runLedgerImport,
}

var importSQLitePath string

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerImportCmd)

	ledgerImportCmd.Flags().StringVar(&importSQLitePath, "sqlite", "", "target database (default: ledger.sqlite_path)")
}

func runLedgerImport(cmd *cobra.Command, args []string) error {
	log, err := parseLogName(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source, err := ledger.NewJSONStore(cfg.Ledger.Dir, map[model.LogName]string{
		model.LogNoMotif:      cfg.Ledger.NoMotifFile,
		model.LogUnknownMotif: cfg.Ledger.UnknownFile,
	})
	if err != nil {
		return err
	}
	votes, err := source.ReadAll(cmd.Context(), log)
	if err != nil {
		return fmt.Errorf("read %s: %w", source.Path(log), err)
	}

	dbPath := importSQLitePath
	if dbPath == "" {
		dbPath = cfg.Ledger.SQLitePath
	}
	target, err := ledger.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = target.Close() }()

	n, err := target.Import(cmd.Context(), log, sortedSubjects(votes), votes)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ Imported %d votes on %d subjects from %s into %s\n",
		n, len(votes), source.Path(log), dbPath)
	return nil
}

func parseLogName(s string) (model.LogName, error) {
	log := model.LogName(s)
	if !log.Valid() {
		return "", fmt.Errorf("unknown log: %s (supported: %s, %s)", s, model.LogNoMotif, model.LogUnknownMotif)
	}
	return log, nil
}

func sortedSubjects(votes model.Votes) []string {
	subjects := make([]string, 0, len(votes))
	for subject := range votes {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

func writeVotes(w io.Writer, votes model.Votes) error {
	if votes == nil {
		votes = model.Votes{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(votes)
}
