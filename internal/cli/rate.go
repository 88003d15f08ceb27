package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyJSON bool

var rateCmd = &cobra.Command{
	Use:   "rate USER_ID DISH_ID like|dislike",
	Short: "Record a like or dislike",
	Long: `Record a user's rating of a dish. Rating a dish again replaces the earlier
rating. The user's profile embedding is recomputed before the command exits.

Examples:
  palate rate alice pad-thai like
  palate rate alice som-tam dislike`,
	Args: cobra.ExactArgs(3),
	RunE: runRate,
}

var historyCmd = &cobra.Command{
	Use:   "history USER_ID",
	Short: "Show a user's ratings, most recent first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(rateCmd, historyCmd)
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
}

func parseVerdict(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "like", "liked", "yes", "+":
		return true, nil
	case "dislike", "disliked", "no", "-":
		return false, nil
	}
	return false, fmt.Errorf("rating must be like or dislike, got %q", s)
}

func runRate(cmd *cobra.Command, args []string) error {
	liked, err := parseVerdict(args[2])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	event, err := a.Ratings.RateDish(commandContext(cmd), args[0], args[1], liked)
	if err != nil {
		return fmt.Errorf("failed to record rating: %w", err)
	}

	verdict := "likes"
	if !event.Liked {
		verdict = "dislikes"
	}
	fmt.Printf("%s %s (%s)\n", event.UserID, verdict, event.DishID)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	events, err := a.Ratings.History(ctx, args[0])
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(events)
	}
	if len(events) == 0 {
		fmt.Printf("%s has not rated any dishes.\n", args[0])
		return nil
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.DishID
	}
	dishes, err := a.Store.GetDishes(ids)
	if err != nil {
		return err
	}
	for _, e := range events {
		mark := "+"
		if !e.Liked {
			mark = "-"
		}
		name := "(deleted)"
		if d, ok := dishes[e.DishID]; ok {
			name = d.Name
		}
		fmt.Printf("%s %s  %-28s %s\n", mark, e.Timestamp.Local().Format("2006-01-02 15:04"), name, e.DishID)
	}
	return nil
}
