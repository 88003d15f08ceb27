package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"palate/internal/adapter/menu"
	"palate/internal/domain"
	"palate/internal/usecase"
)

var (
	dishID          string
	dishRestaurant  string
	dishDescription string
	dishCategory    string
	dishPrice       float64
	dishTaste       string
	dishTasteScale  int

	embedMissing bool

	listTaste     []string
	listThreshold float64
	listJSON      bool
)

var dishCmd = &cobra.Command{
	Use:   "dish",
	Short: "Manage the dish catalogue",
}

var dishAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a dish and schedule its embedding",
	Long: `Add a dish to the catalogue. Its embedding is generated from the name and
description in the background before the command exits.

Examples:
  palate dish add "Pad Thai" --description "rice noodles, tamarind, peanuts" --price 12.5
  palate dish add "Som Tam" --taste sour=0.9,spicy=0.8,sweet=0.3`,
	Args: cobra.ExactArgs(1),
	RunE: runDishAdd,
}

var dishImportCmd = &cobra.Command{
	Use:   "import PATH",
	Short: "Import dishes from menu files",
	Long: `Import dishes from a YAML or JSON menu file, or from every menu file under a
directory (matched by import.includes / import.excludes). Each file is one
restaurant; its base name is the restaurant id unless the file sets one.`,
	Args: cobra.ExactArgs(1),
	RunE: runDishImport,
}

var dishEmbedCmd = &cobra.Command{
	Use:   "embed [DISH_ID...]",
	Short: "Generate dish embeddings now",
	Long: `Generate embeddings for the given dishes, for every dish without one
(--missing), or for the whole catalogue when neither is given.`,
	RunE: runDishEmbed,
}

var dishListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dishes",
	Long: `List dishes ordered by name.

Examples:
  palate dish list --restaurant thai-corner
  palate dish list --taste spicy,sour --threshold 0.7`,
	Args: cobra.NoArgs,
	RunE: runDishList,
}

var dishShowCmd = &cobra.Command{
	Use:   "show DISH_ID",
	Short: "Show one dish with its flavor profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runDishShow,
}

var dishDeleteCmd = &cobra.Command{
	Use:   "delete DISH_ID",
	Short: "Delete a dish",
	Args:  cobra.ExactArgs(1),
	RunE:  runDishDelete,
}

func init() {
	rootCmd.AddCommand(dishCmd)
	dishCmd.AddCommand(dishAddCmd, dishImportCmd, dishEmbedCmd, dishListCmd, dishShowCmd, dishDeleteCmd)

	dishAddCmd.Flags().StringVar(&dishID, "id", "", "dish id (default generated)")
	dishAddCmd.Flags().StringVarP(&dishRestaurant, "restaurant", "r", "", "restaurant id")
	dishAddCmd.Flags().StringVar(&dishDescription, "description", "", "dish description")
	dishAddCmd.Flags().StringVar(&dishCategory, "category", "", "menu category")
	dishAddCmd.Flags().Float64Var(&dishPrice, "price", 0, "price")
	dishAddCmd.Flags().StringVar(&dishTaste, "taste", "", "flavor profile, e.g. sweet=0.2,spicy=0.9; unnamed axes are mid-scale")
	dishAddCmd.Flags().IntVar(&dishTasteScale, "scale", 0, "scale of --taste values: 1 or 5 (default from config)")

	dishEmbedCmd.Flags().BoolVar(&embedMissing, "missing", false, "only dishes without an embedding")

	dishListCmd.Flags().StringVarP(&dishRestaurant, "restaurant", "r", "", "only this restaurant")
	dishListCmd.Flags().StringVar(&dishCategory, "category", "", "only this category")
	dishListCmd.Flags().StringSliceVar(&listTaste, "taste", nil, "axes that must be strong, e.g. spicy,sour")
	dishListCmd.Flags().Float64Var(&listThreshold, "threshold", -1, "axis threshold in [0,1] (default from config)")
	dishListCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

func runDishAdd(cmd *cobra.Command, args []string) error {
	in := usecase.DishInput{
		ID:           dishID,
		RestaurantID: dishRestaurant,
		Name:         args[0],
		Description:  dishDescription,
		Price:        dishPrice,
		Category:     dishCategory,
	}
	if dishTaste != "" {
		scale := dishTasteScale
		if scale == 0 {
			scale = cfg.Taste.InputScale
		}
		t, err := parseTaste(dishTaste, scale)
		if err != nil {
			return err
		}
		in.Taste = &t
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	dish, err := a.Catalog.AddDish(commandContext(cmd), in)
	if err != nil {
		return fmt.Errorf("failed to add dish: %w", err)
	}
	fmt.Printf("Added dish %s (%s)\n", dish.Name, dish.ID)
	return nil
}

func runDishImport(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	var menus []domain.Menu
	if info.IsDir() {
		menus, err = a.Menus.LoadDir(path)
		if err != nil {
			return err
		}
	} else {
		m, err := menu.ParseFile(path)
		if err != nil {
			return err
		}
		menus = []domain.Menu{m}
	}
	return importMenus(cmd, a.Catalog, menus)
}

func importMenus(cmd *cobra.Command, catalog *usecase.Catalog, menus []domain.Menu) error {
	if len(menus) == 0 {
		fmt.Println("No menu files found.")
		return nil
	}

	ctx := commandContext(cmd)
	var dishes, scheduled int
	for _, m := range menus {
		res, err := catalog.ImportMenu(ctx, m)
		if err != nil {
			return fmt.Errorf("import %s: %w", m.Source, err)
		}
		fmt.Printf("  %-24s %d dishes\n", m.RestaurantID, len(res.Dishes))
		dishes += len(res.Dishes)
		scheduled += res.Scheduled
	}

	fmt.Printf("\nImport complete:\n")
	fmt.Printf("  Menus:      %d\n", len(menus))
	fmt.Printf("  Dishes:     %d\n", dishes)
	fmt.Printf("  Embeddings: %d scheduled\n", scheduled)
	return nil
}

func runDishEmbed(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	progress := newProgress("Embedding")

	var n int
	switch {
	case len(args) > 0:
		n, err = a.Dishes.EmbedDishes(ctx, args, progress)
	case embedMissing:
		n, err = a.Dishes.EmbedMissing(ctx, progress)
	default:
		var all []domain.Dish
		all, err = a.Store.ListDishes()
		if err != nil {
			return err
		}
		ids := make([]string, len(all))
		for i, d := range all {
			ids[i] = d.ID
		}
		n, err = a.Dishes.EmbedDishes(ctx, ids, progress)
	}
	if err != nil {
		return fmt.Errorf("embedding failed after %d dishes: %w", n, err)
	}

	fmt.Printf("Embedded %d dishes with %s\n", n, a.Embedder.ModelName())
	return nil
}

func runDishList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	threshold := listThreshold
	if threshold < 0 {
		threshold = cfg.Taste.FilterThreshold
	}
	dishes, err := a.Catalog.ListDishes(commandContext(cmd), usecase.DishFilter{
		RestaurantID: dishRestaurant,
		Category:     dishCategory,
		Axes:         listTaste,
		Threshold:    threshold,
	})
	if err != nil {
		return err
	}
	for i := range dishes {
		dishes[i].Embedding = nil
	}

	if listJSON {
		return printJSON(dishes)
	}
	if len(dishes) == 0 {
		fmt.Println("No dishes found.")
		return nil
	}
	for _, d := range dishes {
		embedded := " "
		if d.EmbeddingModel != "" {
			embedded = "*"
		}
		fmt.Printf("%s %-36s %-28s %-16s %8.2f\n", embedded, d.ID, d.Name, d.RestaurantID, d.Price)
	}
	fmt.Printf("\n%d dishes (* = embedded)\n", len(dishes))
	return nil
}

func runDishShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	d, err := a.Catalog.GetDish(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", d.Name, d.ID)
	if d.Description != "" {
		fmt.Printf("  %s\n", d.Description)
	}
	if d.RestaurantID != "" {
		fmt.Printf("  Restaurant: %s\n", d.RestaurantID)
	}
	if d.Category != "" {
		fmt.Printf("  Category:   %s\n", d.Category)
	}
	fmt.Printf("  Price:      %.2f\n", d.Price)
	if d.HasEmbedding() {
		fmt.Printf("  Embedding:  %d dims (%s)\n", len(d.Embedding), d.EmbeddingModel)
	} else {
		fmt.Printf("  Embedding:  pending\n")
	}
	fmt.Println(tasteBars(d.Taste))
	return nil
}

func runDishDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Catalog.DeleteDish(commandContext(cmd), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted dish %s\n", args[0])
	return nil
}
