package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dyuri/tabconv/pkg/tabconv"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var log = logrus.New()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tabconv",
	Short: "Read MapInfo TAB tables",
	Long: `tabconv reads MapInfo TAB tables (.tab, .dat, .id, .map) and
exports their rows with point geometry.

The table path can be given as an argument or in the [mapinfo] section
of a TOML config file.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "TOML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log pipeline progress")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

func setupLogging(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("log-format")

	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	switch format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}
	return nil
}

// openTable resolves the table path and options from flags and config
func openTable(cmd *cobra.Command, args []string) (*tabconv.Table, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	opts := []tabconv.Option{tabconv.WithLogger(log)}
	if cfg.MapInfo.Charset != "" {
		opts = append(opts, tabconv.WithCharset(cfg.MapInfo.Charset))
	}

	path := cfg.tablePath(args)
	table, err := tabconv.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	return table, nil
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info [input.tab]",
	Short: "Display table information",
	Long: `Display the schema, attribute header and geometry header of a table.

Shows field definitions, record counts, projection parameters and the
map extent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().Bool("json", false, "Output as JSON")
	infoCmd.Flags().Bool("brief", false, "Show only summary")
}

func runInfo(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	brief, _ := cmd.Flags().GetBool("brief")

	table, err := openTable(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return outputInfoJSON(out, table)
	}
	return outputInfoText(out, table, brief)
}

func outputInfoText(w io.Writer, table *tabconv.Table, brief bool) error {
	schema := table.Schema()
	withGeometry := 0
	for _, row := range table.Rows() {
		if row.Geometry != nil {
			withGeometry++
		}
	}

	if brief {
		fmt.Fprintf(w, "%s: Fields=%d Rows=%d Deleted=%d Points=%d Warnings=%d\n",
			table.Path(),
			schema.NumFields(),
			table.Len(),
			table.Deleted(),
			withGeometry,
			len(table.Warnings()))
		return nil
	}

	fmt.Fprintf(w, "Table: %s\n", table.Path())
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Header:")
	fmt.Fprintf(w, "  Version:          %d\n", schema.Version)
	fmt.Fprintf(w, "  Charset:          %s (%s)\n", schema.Charset, schema.Codec)
	attrs := table.AttributeHeader()
	fmt.Fprintf(w, "  Last modified:    %s\n", attrs.LastModified.Format("2006-01-02"))
	fmt.Fprintf(w, "  Records:          %d (%d deleted)\n", attrs.RecordCount, table.Deleted())
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Fields:")
	for _, f := range schema.Fields {
		fmt.Fprintf(w, "  %-16s %s", f.Name, formatFieldType(f))
		if f.HasIndex() {
			fmt.Fprintf(w, " Index %d", *f.Index)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	if h := table.MapHeader(); h != nil {
		fmt.Fprintln(w, "Geometry:")
		fmt.Fprintf(w, "  Map version:      %d\n", h.Version)
		fmt.Fprintf(w, "  Block size:       %d\n", h.BlockSize)
		fmt.Fprintf(w, "  Origin code:      %d (x%+.0f y%+.0f)\n", h.CoordOriginCode, h.XQuadrant, h.YQuadrant)
		fmt.Fprintf(w, "  Scale:            %g, %g\n", h.XScale, h.YScale)
		fmt.Fprintf(w, "  Offset:           %g, %g\n", h.XOffset, h.YOffset)
		fmt.Fprintf(w, "  Projection:       type %d, datum %d\n", h.ProjectionType, h.Datum)
		if h.Bounds != nil {
			fmt.Fprintf(w, "  Extent:           %g %g - %g %g\n",
				h.Bounds.MinX(), h.Bounds.MinY(), h.Bounds.MaxX(), h.Bounds.MaxY())
		}
		fmt.Fprintf(w, "  Points:           %d of %d rows\n", withGeometry, table.Len())
		fmt.Fprintln(w)
	}

	if warnings := table.Warnings(); len(warnings) > 0 {
		fmt.Fprintf(w, "Warnings (%d):\n", len(warnings))
		for _, warn := range warnings {
			fmt.Fprintf(w, "  ⚠ %s\n", warn)
		}
	}

	return nil
}

func outputInfoJSON(w io.Writer, table *tabconv.Table) error {
	schema := table.Schema()
	fields := make([]map[string]interface{}, len(schema.Fields))
	for i, f := range schema.Fields {
		entry := map[string]interface{}{
			"name":   f.Name,
			"type":   f.Kind.String(),
			"length": f.Length,
		}
		if f.Kind == tabconv.KindDecimal {
			entry["decimals"] = f.Decimals
		}
		if f.HasIndex() {
			entry["index"] = *f.Index
		}
		fields[i] = entry
	}

	attrs := table.AttributeHeader()
	info := map[string]interface{}{
		"file": table.Path(),
		"header": map[string]interface{}{
			"version": schema.Version,
			"charset": schema.Charset,
			"codec":   schema.Codec,
		},
		"fields": fields,
		"counts": map[string]int{
			"records": attrs.RecordCount,
			"rows":    table.Len(),
			"deleted": table.Deleted(),
		},
		"lastModified": attrs.LastModified.Format("2006-01-02"),
	}

	if h := table.MapHeader(); h != nil {
		m := map[string]interface{}{
			"version":    h.Version,
			"blockSize":  h.BlockSize,
			"originCode": h.CoordOriginCode,
			"scale":      []float64{h.XScale, h.YScale},
			"offset":     []float64{h.XOffset, h.YOffset},
			"projection": h.ProjectionType,
			"datum":      h.Datum,
		}
		if h.Bounds != nil {
			m["extent"] = []float64{h.Bounds.MinX(), h.Bounds.MinY(), h.Bounds.MaxX(), h.Bounds.MaxY()}
		}
		info["map"] = m
	}

	warnings := make([]string, 0, len(table.Warnings()))
	for _, warn := range table.Warnings() {
		warnings = append(warnings, warn.Error())
	}
	info["warnings"] = warnings

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func formatFieldType(f tabconv.Field) string {
	switch f.Kind {
	case tabconv.KindText:
		return fmt.Sprintf("Char (%d)", f.Length)
	case tabconv.KindDecimal:
		return fmt.Sprintf("Decimal (%d, %d)", f.Length, f.Decimals)
	default:
		return f.Kind.String()
	}
}

// dump command
var dumpCmd = &cobra.Command{
	Use:   "dump [input.tab]",
	Short: "Export rows as JSON or GeoJSON",
	Long: `Export every live row with its attributes and point geometry.

The geojson format writes a FeatureCollection of the rows that have point
geometry; use the json format to export every row.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	dumpCmd.Flags().String("format", "json", "Output format: json, geojson")
}

func runDump(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	table, err := openTable(cmd, args)
	if err != nil {
		return err
	}

	// Determine output writer
	output := cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	switch format {
	case "json":
		return writeRowsJSON(output, table)
	case "geojson":
		return writeGeoJSON(output, table)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeRowsJSON(w io.Writer, table *tabconv.Table) error {
	rows := make([]map[string]interface{}, 0, table.Len())
	for _, row := range table.Rows() {
		entry := map[string]interface{}{
			"row":        row.RowID,
			"attributes": row.Map(),
		}
		if row.Geometry != nil {
			entry["geometry"] = map[string]interface{}{
				"x":      row.Geometry.X(),
				"y":      row.Geometry.Y(),
				"symbol": row.Geometry.Symbol,
			}
		} else {
			entry["geometry"] = nil
		}
		rows = append(rows, entry)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}

// writeGeoJSON writes rows with point geometry as a FeatureCollection.
// Feature ids are one-based on-disk row numbers.
func writeGeoJSON(w io.Writer, table *tabconv.Table) error {
	fc := geojson.FeatureCollection{
		Features: make([]geojson.Feature, 0, table.Len()),
	}
	for _, row := range table.Rows() {
		if row.Geometry == nil {
			continue
		}
		id := uint64(row.RowID) + 1
		fc.Features = append(fc.Features, geojson.Feature{
			ID:         &id,
			Geometry:   geojson.Geometry{Geometry: row.Geometry.Point},
			Properties: row.Map(),
		})
	}

	data, err := geojson.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// validate command
var validateCmd = &cobra.Command{
	Use:   "validate [input.tab]",
	Short: "Validate table structure",
	Long: `Load a table and report structural errors and warnings.

Schema and attribute mismatches are errors. A missing spatial index or
unsupported geometry objects are warnings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("strict", false, "Fail on warnings")
}

func runValidate(cmd *cobra.Command, args []string) error {
	strict, _ := cmd.Flags().GetBool("strict")
	out := cmd.OutOrStdout()

	table, err := openTable(cmd, args)
	if err != nil {
		fmt.Fprintf(out, "  ✗ %s\n", err)
		return fmt.Errorf("validation failed")
	}

	fmt.Fprintf(out, "Validating: %s\n", table.Path())
	fmt.Fprintln(out, strings.Repeat("=", 50))

	warnings := table.Warnings()
	if len(warnings) == 0 {
		fmt.Fprintln(out, "✓ Valid table - no issues found")
		return nil
	}

	fmt.Fprintf(out, "\nWarnings (%d):\n", len(warnings))
	for _, warn := range warnings {
		fmt.Fprintf(out, "  ⚠ %s\n", warn)
	}
	fmt.Fprintln(out)

	if strict {
		return fmt.Errorf("validation failed: %d warning(s)", len(warnings))
	}
	fmt.Fprintf(out, "Validation passed with %d warning(s)\n", len(warnings))
	return nil
}

// version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tabconv version %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "built: %s\n", date)
	},
}
