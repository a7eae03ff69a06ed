package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/parley-agents/parley/internal/config"
	"github.com/parley-agents/parley/internal/directory"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List configured peer agents and their cards",
	RunE:  runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dir := directory.New(cfg.Peers)
	if dir.Len() == 0 {
		fmt.Println("No peer agents configured. Set PARLEY_PEERS, e.g. person_b=http://localhost:10002")
		return nil
	}

	cards := dir.FetchAllCards(cmd.Context())
	for _, name := range dir.List() {
		url, _ := dir.Resolve(name)
		card := cards[name]
		if card == nil {
			fmt.Printf("%s %s (%s)\n", color.RedString("✗"), name, url)
			continue
		}
		fmt.Printf("%s %s (%s)\n", color.GreenString("✓"), card.Name, url)
		if card.Description != "" {
			fmt.Printf("    %s\n", card.Description)
		}
		for _, skill := range card.Skills {
			fmt.Printf("    - %s: %s\n", skill.Name, skill.Description)
		}
	}
	return nil
}
