package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"palate/internal/domain"
)

var (
	recommendLimit int
	recommendJSON  bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend USER_ID",
	Short: "Recommend dishes the user has not rated",
	Long: `List the unrated dishes nearest to the user's profile embedding, nearest first.

Examples:
  palate recommend alice
  palate recommend alice -n 3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

var matchCmd = &cobra.Command{
	Use:   "match USER_ID DISH_ID",
	Short: "Show how well a dish's flavor suits the user's declared taste",
	Args:  cobra.ExactArgs(2),
	RunE:  runMatch,
}

func init() {
	rootCmd.AddCommand(recommendCmd, matchCmd)
	recommendCmd.Flags().IntVarP(&recommendLimit, "limit", "n", 0, "number of dishes (default from config)")
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "output as JSON")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	recs, err := a.Recommender.Recommend(commandContext(cmd), args[0], recommendLimit)
	if err != nil {
		return fmt.Errorf("recommendation failed: %w", err)
	}
	if recommendJSON {
		for i := range recs {
			recs[i].Dish.Embedding = nil
		}
		return printJSON(recs)
	}
	if len(recs) == 0 {
		fmt.Printf("No recommendations for %s yet.\n", args[0])
		return nil
	}

	fmt.Printf("Recommended for %s:\n\n", args[0])
	for i, r := range recs {
		fmt.Printf("%2d. %-28s %-16s distance %.3f\n", i+1, r.Dish.Name, r.Dish.RestaurantID, r.Distance)
	}
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	m, err := a.Matcher.Match(commandContext(cmd), args[0], args[1])
	if errors.Is(err, domain.ErrNoTasteProfile) {
		fmt.Println("No taste match available: both the user and the dish need a flavor profile.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("%d%% taste match\n", m.Percent)
	return nil
}
