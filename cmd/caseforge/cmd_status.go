package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"caseforge/internal/axes"
	"caseforge/internal/quota"
	"caseforge/internal/storage"
)

var statusAddr string

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	axisStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	behindStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Affiche la couverture de la campagne",
	Long:  `Interroge /dashboard sur un coordinateur en cours d'exécution et rend la progression par axe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(strings.TrimRight(statusAddr, "/") + "/dashboard")
		if err != nil {
			return fmt.Errorf("coordinateur injoignable: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("réponse inattendue du coordinateur: %s", resp.Status)
		}
		var snapshot storage.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
			return fmt.Errorf("dashboard illisible: %w", err)
		}
		fmt.Print(renderStatus(snapshot))
		return nil
	},
}

func renderStatus(snapshot storage.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Campagne caseforge") + "\n\n")
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("objectif total      :"), snapshot.TargetTotalCases)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("objectif génération :"), snapshot.GenerationTarget)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("seeds               :"), snapshot.SeedCases)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("consignes émises    :"), snapshot.Issued)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("cas soumis          :"), snapshot.Submitted)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("cas d'entraînement  :"), snapshot.TrainingCasesCurrent)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("restant             :"), snapshot.Remaining)

	shares := axes.DefaultShares()
	for _, axis := range quota.CoverageAxes() {
		progress, ok := snapshot.Dimensions[string(axis)]
		if !ok {
			continue
		}
		b.WriteString("\n" + axisStyle.Render(string(axis)) + "\n")
		for _, bucket := range shares[axis].Buckets {
			row, ok := progress[bucket]
			if !ok {
				continue
			}
			line := fmt.Sprintf("  %-28s %4d / %-6.1f", bucket, row.Current, row.TargetCount)
			if row.Gap > 0 {
				line += behindStyle.Render(fmt.Sprintf("  (reste %.1f)", row.Gap))
			} else {
				line += okStyle.Render("  ✓")
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://127.0.0.1:8765", "adresse du coordinateur")
}
