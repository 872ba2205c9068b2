package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kitbuilder/backend/internal/app"
	"github.com/kitbuilder/backend/internal/domain"
	"github.com/kitbuilder/backend/internal/usecase"
)

func newImportCmd(c *cli) *cobra.Command {
	var (
		collection  string
		file        string
		concurrency int
		failOnErr   bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk upsert records from a JSON file",
		Long: `Import reads a JSON array of {"id": ..., "fields": {...}} records and upserts each one.
Existing documents are updated only when their fields differ. Use --file - to read stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if collection == "" {
				collection = c.app.Config.Collections.Products
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open %s: %w", file, err)
				}
				defer f.Close()
				in = f
			}

			records, err := app.ReadRecords(in)
			if err != nil {
				return err
			}

			importer := c.app.Importer
			if concurrency > 0 {
				cfg := c.app.Config
				importer = usecase.NewImporter(c.app.Store, usecase.ImporterConfig{
					Concurrency: concurrency,
					Collections: cfg.ManagedCollections(),
					Transform:   usecase.StampDerivedFields(cfg.Collections.Products),
				}, c.app.Logger)
			}

			result, err := importer.ImportBatch(cmd.Context(), records, collection)
			if err != nil {
				return err
			}
			if err := c.printJSON(result); err != nil {
				return err
			}
			if failOnErr && len(result.Failed) > 0 {
				return fmt.Errorf("%d of %d records failed", len(result.Failed), len(records))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "target collection (default: products collection)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the JSON records file, or - for stdin (required)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel writes (default from config)")
	cmd.Flags().BoolVar(&failOnErr, "fail-on-error", false, "exit non-zero when any record fails")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newQueryCmd(c *cli) *cobra.Command {
	var (
		spec                 domain.QuerySpec
		sortKey, direction   string
		minPrice, maxPrice   float64
		minRating, maxRating float64
		asJSON               bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a catalog query",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.SortKey = domain.SortKey(sortKey)
			spec.SortDirection = domain.SortDirection(direction)
			bounds := []struct {
				flag  string
				value float64
				dst   **float64
			}{
				{"min-price", minPrice, &spec.MinPrice},
				{"max-price", maxPrice, &spec.MaxPrice},
				{"min-rating", minRating, &spec.MinRating},
				{"max-rating", maxRating, &spec.MaxRating},
			}
			for _, b := range bounds {
				if cmd.Flags().Changed(b.flag) {
					v := b.value
					*b.dst = &v
				}
			}

			result, err := c.app.Catalog.Products(cmd.Context(), spec)
			if err != nil {
				return err
			}
			if asJSON {
				return c.printJSON(result)
			}
			return c.printProducts(result)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&spec.SearchText, "search", "s", "", "free-text search")
	flags.StringVar(&spec.Category, "category", "", "category, canonical or display name")
	flags.StringVar(&spec.Brand, "brand", "", "exact brand")
	flags.Float64Var(&minPrice, "min-price", 0, "minimum best price")
	flags.Float64Var(&maxPrice, "max-price", 0, "maximum best price")
	flags.Float64Var(&minRating, "min-rating", 0, "minimum rating")
	flags.Float64Var(&maxRating, "max-rating", 0, "maximum rating")
	flags.StringVar(&sortKey, "sort", string(domain.SortByName), "sort key (name, price, rating, brand, createdAt)")
	flags.StringVar(&direction, "dir", string(domain.SortAsc), "sort direction (asc, desc)")
	flags.IntVar(&spec.Page, "page", 1, "page number")
	flags.IntVar(&spec.PageSize, "page-size", 0, "page size (default from config)")
	flags.BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	return cmd
}

func (c *cli) printProducts(result domain.QueryResult) error {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBRAND\tCATEGORY\tPRICE\tRATING")
	for _, p := range result.Items {
		price := "-"
		if v, ok := p.BestPrice(); ok {
			price = fmt.Sprintf("%.2f", v)
		}
		rating := "-"
		if p.Rating != nil {
			rating = fmt.Sprintf("%.1f", *p.Rating)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Brand, p.Category, price, rating)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "page %d, %d of %d matches\n", result.Page, len(result.Items), result.TotalCount)
	return err
}

func newSuggestCmd(c *cli) *cobra.Command {
	var (
		fields []string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "suggest <text>",
		Short: "Print search suggestions for text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suggestions, err := c.app.Catalog.Suggest(cmd.Context(), strings.Join(args, " "), fields, limit)
			if err != nil {
				return err
			}
			for _, s := range suggestions {
				fmt.Fprintln(c.out, s)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&fields, "fields", usecase.DefaultSuggestFields, "product fields to draw suggestions from")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum suggestions (default from config)")
	return cmd
}

func newCategoriesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the category table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := c.app.Catalog.Categories()
			if len(categories) == 0 {
				return errors.New("category table is empty")
			}
			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CANONICAL\tDISPLAY")
			for _, cat := range categories {
				fmt.Fprintf(w, "%s\t%s\n", cat.Canonical, cat.Display)
			}
			return w.Flush()
		},
	}
}
