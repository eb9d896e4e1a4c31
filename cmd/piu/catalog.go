package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var afterFlag string

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Browse collections",
}

var collectionsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search collections by title or handle",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		if err := a.requireLogin(); err != nil {
			return err
		}
		page, err := a.console.Search(cmd.Context(), strings.Join(args, " "), afterFlag)
		if err != nil {
			return err
		}
		printCollections(cmd.OutOrStdout(), page.Collections, page.PageInfo)
		return nil
	},
}

var productsCmd = &cobra.Command{
	Use:   "products [collection-id]",
	Short: "Load a collection's products, or show the loaded ones",
	Long: `Loads the products of a collection and makes it the working collection.
Loading a collection clears the selection. Without an argument the
products of the working collection are listed again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		if err := a.requireLogin(); err != nil {
			return err
		}
		ctx := cmd.Context()
		if len(args) == 0 {
			if err := a.requireCollection(); err != nil {
				return err
			}
			if err := a.restore(ctx, true); err != nil {
				return err
			}
		} else {
			col, err := a.client.GetCollection(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.restore(ctx, false); err != nil {
				return err
			}
			if _, err := a.console.SelectCollection(ctx, *col); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", col.Title, col.ID)
		}
		v := a.console.Snapshot()
		printProducts(cmd.OutOrStdout(), v.Products, v.Selected)
		return a.save()
	},
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Change the product selection of the working collection",
}

func selectionCommand(use, short string, args cobra.PositionalArgs, fn func(a *app, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := a.requireCollection(); err != nil {
				return err
			}
			if err := a.restore(cmd.Context(), true); err != nil {
				return err
			}
			if err := fn(a, args); err != nil {
				return err
			}
			v := a.console.Snapshot()
			printProducts(cmd.OutOrStdout(), v.Products, v.Selected)
			return a.save()
		},
	}
}

func init() {
	collectionsSearchCmd.Flags().StringVar(&afterFlag, "after", "", "Cursor of the page to fetch")
	collectionsCmd.AddCommand(collectionsSearchCmd)

	selectCmd.AddCommand(
		selectionCommand("toggle <row|product-id>...", "Toggle products by table row or id", cobra.MinimumNArgs(1),
			func(a *app, args []string) error {
				loaded := a.console.Selection().Loaded()
				for _, arg := range args {
					id, err := resolveProduct(arg, loaded)
					if err != nil {
						return err
					}
					a.console.Toggle(id)
				}
				return nil
			}),
		selectionCommand("all", "Select every loaded product", cobra.NoArgs,
			func(a *app, args []string) error {
				a.console.SelectAll()
				return nil
			}),
		selectionCommand("clear", "Deselect everything", cobra.NoArgs,
			func(a *app, args []string) error {
				a.console.ClearSelection()
				return nil
			}),
		selectionCommand("show", "Show the loaded products and the selection", cobra.NoArgs,
			func(a *app, args []string) error { return nil }),
	)
}
