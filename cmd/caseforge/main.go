package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "caseforge",
	Short: "caseforge - coordinateur de génération de cas de succession",
	Long: `caseforge pilote la constitution d'un corpus d'entraînement de cas de
succession français : il tire des profils sur douze axes de diversité,
génère et verrouille une cible TOON par consigne, puis valide les
énoncés soumis par les agents avant de les journaliser et de réécrire
les exports d'entraînement.

L'état complet d'une campagne vit dans un répertoire unique et se
rejoue à l'identique au redémarrage.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("initialisation du logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "logs de débogage")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "fichier de configuration (JSON ou YAML)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(1)
	}
}
