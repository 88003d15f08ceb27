package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"palate/internal/domain"
)

var (
	userName       string
	userEmail      string
	userTaste      string
	userTasteScale int
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add [USER_ID]",
	Short: "Create or update a user",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUserAdd,
}

var userTasteCmd = &cobra.Command{
	Use:   "taste USER_ID",
	Short: "Set a user's declared flavor preferences",
	Long: `Set the six-axis taste a user declares for themselves. Values are read on
--scale (1 for 0..1 values, 5 for 1..5 ratings).

Examples:
  palate user taste alice --taste sweet=2,salty=3,sour=4,bitter=1,umami=5,spicy=5 --scale 5`,
	Args: cobra.ExactArgs(1),
	RunE: runUserTaste,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userTasteCmd)

	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "email address")

	userTasteCmd.Flags().StringVar(&userTaste, "taste", "", "flavor profile, e.g. sweet=0.2,spicy=0.9; unnamed axes are mid-scale (required)")
	userTasteCmd.Flags().IntVar(&userTasteScale, "scale", 0, "scale of --taste values: 1 or 5 (default from config)")
	userTasteCmd.MarkFlagRequired("taste")
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	user := domain.User{Name: userName, Email: userEmail}
	if len(args) == 1 {
		existing, err := a.Users.GetUser(commandContext(cmd), args[0])
		if err == nil {
			user.Taste = existing.Taste
			user.CreatedAt = existing.CreatedAt
		}
		user.ID = args[0]
	}
	user, err = a.Users.CreateUser(commandContext(cmd), user)
	if err != nil {
		return err
	}
	fmt.Printf("Saved user %s\n", user.ID)
	return nil
}

func runUserTaste(cmd *cobra.Command, args []string) error {
	scale := userTasteScale
	if scale == 0 {
		scale = cfg.Taste.InputScale
	}
	raw, err := parseRawTaste(userTaste, scale)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	user, err := a.Users.SetTaste(commandContext(cmd), args[0], raw, scale)
	if err != nil {
		return err
	}
	fmt.Printf("Taste of %s:\n", user.ID)
	fmt.Println(tasteBars(user.Taste))
	return nil
}
