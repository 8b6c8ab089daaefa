package cmd

import (
	"fmt"

	"recipebox/internal/recipes"

	"github.com/spf13/cobra"
)

func newRecipesCmd(a *app) *cobra.Command {
	recipesCmd := &cobra.Command{
		Use:     "recipes",
		Aliases: []string{"recipe"},
		Short:   "Browse recipes",
		Long: `Browse the recipe collection of the backend.

Requests carry the stored credentials when there are any, so unpublished
or access-restricted recipes appear for users allowed to see them.

Examples:
  recipebox recipes list
  recipebox recipes list --page 2 --page-size 20 -o wide
  recipebox recipes featured --limit 3
  recipebox recipes get 5e0c3f4b-1d59-4a47-9c2c-0d1f2a3b4c5d -o yaml`,
	}

	recipesCmd.AddCommand(newRecipesListCmd(a))
	recipesCmd.AddCommand(newRecipesGetCmd(a))
	recipesCmd.AddCommand(newRecipesFeaturedCmd(a))
	return recipesCmd
}

func newRecipesListCmd(a *app) *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recipes, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			result, err := a.recipeClient().List(ctx, page, pageSize)
			if err != nil {
				return err
			}
			f, err := a.formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return f.FormatRecipes(result.Recipes, &result.Pagination)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", recipes.DefaultPageSize, "Recipes per page")
	return cmd
}

func newRecipesGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			recipe, err := a.recipeClient().Get(ctx, args[0])
			if err != nil {
				return err
			}
			if recipe == nil {
				return fmt.Errorf("recipe %q not found", args[0])
			}
			f, err := a.formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return f.FormatRecipe(*recipe)
		},
	}
}

func newRecipesFeaturedCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "featured",
		Short: "List featured recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			list, err := a.recipeClient().Featured(ctx, limit)
			if err != nil {
				return err
			}
			f, err := a.formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return f.FormatRecipes(list, nil)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", recipes.DefaultFeaturedLimit, "Maximum number of recipes")
	return cmd
}
