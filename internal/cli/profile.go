package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"palate/internal/domain"
)

var (
	recomputeAll bool
	profileJSON  bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and rebuild profile embeddings",
}

var profileShowCmd = &cobra.Command{
	Use:   "show USER_ID",
	Short: "Show a user's profile embedding and declared taste",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

var profileRecomputeCmd = &cobra.Command{
	Use:   "recompute [USER_ID]",
	Short: "Recompute profile embeddings from rating history",
	Long: `Recompute one user's profile embedding, or every rater's with --all.
Useful after dishes were re-embedded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfileRecompute,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileShowCmd, profileRecomputeCmd)
	profileShowCmd.Flags().BoolVar(&profileJSON, "json", false, "output as JSON")
	profileRecomputeCmd.Flags().BoolVar(&recomputeAll, "all", false, "recompute every user who has rated a dish")
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	profile, ok, err := a.Users.Profile(ctx, args[0])
	if err != nil {
		return err
	}
	if profileJSON {
		if !ok {
			return printJSON(nil)
		}
		return printJSON(profile)
	}

	if ok {
		fmt.Printf("Profile of %s\n", args[0])
		fmt.Printf("  Version:      %d\n", profile.Version)
		fmt.Printf("  Ratings used: %d\n", profile.Contributing)
		fmt.Printf("  Dimensions:   %d\n", len(profile.Vector))
		fmt.Printf("  Updated:      %s\n", profile.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("%s has no profile embedding yet. Rate some embedded dishes first.\n", args[0])
	}

	user, err := a.Users.GetUser(ctx, args[0])
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err == nil {
		fmt.Println("Declared taste:")
		fmt.Println(tasteBars(user.Taste))
	}
	return nil
}

func runProfileRecompute(cmd *cobra.Command, args []string) error {
	if recomputeAll == (len(args) == 1) {
		return errors.New("give either a USER_ID or --all")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	if recomputeAll {
		n, err := a.Profiles.RecomputeAll(ctx, newProgress("Recomputing"))
		if err != nil {
			return err
		}
		fmt.Printf("Recomputed %d profiles\n", n)
		return nil
	}

	profile, ok, err := a.Profiles.Recompute(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to recompute profile: %w", err)
	}
	if !ok {
		fmt.Printf("%s has no rated dish with an embedding; no profile written.\n", args[0])
		return nil
	}
	fmt.Printf("Profile of %s recomputed from %d ratings (version %d)\n", args[0], profile.Contributing, profile.Version)
	return nil
}
