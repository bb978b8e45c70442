// vocab-clean normalizes an existing label vocabulary in place: every entry
// is run through the standard normalizer, duplicates are merged, entries that
// cannot be salvaged are dropped, and the original file is kept as a backup.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ankitmukherjee01/form-pre-processor/internal/label"
)

var (
	dryRun  = flag.Bool("dry-run", false, "Report what would change without writing")
	verbose = flag.Bool("verbose", false, "List every converted and dropped label")
	help    = flag.Bool("help", false, "Show help message")
)

const labelsKey = "standardized_field_labels"

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: vocabulary file path required\n\n")
		printUsage()
		os.Exit(1)
	}

	path := flag.Arg(0)
	report, err := cleanVocabulary(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printReport(report)
}

func printHelp() {
	fmt.Println("vocab-clean - normalize a standardized label vocabulary file")
	fmt.Println()
	fmt.Println("Runs every vocabulary entry through the label normalizer, merges")
	fmt.Println("duplicates, drops entries with no usable content, and updates the")
	fmt.Println("file metadata. The original file is saved with a .bak suffix.")
	fmt.Println()
	printUsage()
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -dry-run    Report what would change without writing")
	fmt.Println("  -verbose    List every converted and dropped label")
	fmt.Println("  -help       Show this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  vocab-clean label_list.json")
	fmt.Println("  vocab-clean -dry-run -verbose label_list.json")
}

func printUsage() {
	fmt.Println("USAGE:")
	fmt.Println("  vocab-clean [OPTIONS] <vocabulary_file>")
}

// cleanReport summarizes one cleaning run.
type cleanReport struct {
	Path      string
	Total     int
	Kept      int
	Converted [][2]string // raw, normalized
	Merged    int
	Dropped   []string
	DryRun    bool
}

func cleanVocabulary(path string) (*cleanReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	var rawLabels []string
	if raw, ok := doc[labelsKey]; ok {
		if err := json.Unmarshal(raw, &rawLabels); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", labelsKey, err)
		}
	}

	report := &cleanReport{Path: path, Total: len(rawLabels), DryRun: *dryRun}
	cleaned := make(map[string]struct{}, len(rawLabels))
	for _, raw := range rawLabels {
		if ok, _ := label.Validate(raw); ok {
			if _, dup := cleaned[raw]; dup {
				report.Merged++
				continue
			}
			cleaned[raw] = struct{}{}
			report.Kept++
			continue
		}

		normalized := label.Normalize(raw)
		if ok, _ := label.Validate(normalized); !ok {
			report.Dropped = append(report.Dropped, raw)
			continue
		}
		if _, dup := cleaned[normalized]; dup {
			report.Merged++
			continue
		}
		cleaned[normalized] = struct{}{}
		report.Converted = append(report.Converted, [2]string{raw, normalized})
	}

	if *dryRun {
		return report, nil
	}

	sorted := make([]string, 0, len(cleaned))
	for l := range cleaned {
		sorted = append(sorted, l)
	}
	sort.Strings(sorted)

	if err := writeCleaned(path, doc, sorted, data); err != nil {
		return nil, err
	}
	return report, nil
}

// writeCleaned backs up the original file and rewrites it with the cleaned
// label list, preserving any metadata keys it does not manage itself.
func writeCleaned(path string, doc map[string]json.RawMessage, labels []string, original []byte) error {
	if err := os.WriteFile(path+".bak", original, 0o644); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return err
	}
	doc[labelsKey] = labelsJSON

	metadata := map[string]json.RawMessage{}
	if raw, ok := doc["metadata"]; ok {
		_ = json.Unmarshal(raw, &metadata)
	}
	metadata["total_labels"], _ = json.Marshal(len(labels))
	metadata["last_modified"], _ = json.Marshal(time.Now().UTC().Format(time.RFC3339))
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	doc["metadata"] = metadataJSON

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write vocabulary: %w", err)
	}
	return nil
}

func printReport(report *cleanReport) {
	if report.DryRun {
		fmt.Println("Dry run - no files written")
	}
	fmt.Printf("Vocabulary: %s\n", report.Path)
	fmt.Printf("Entries: %d\n", report.Total)
	fmt.Printf("Already clean: %d\n", report.Kept)
	fmt.Printf("Converted: %d\n", len(report.Converted))
	fmt.Printf("Merged duplicates: %d\n", report.Merged)
	fmt.Printf("Dropped: %d\n", len(report.Dropped))

	if *verbose {
		if len(report.Converted) > 0 {
			fmt.Println("\nConverted labels:")
			for _, pair := range report.Converted {
				fmt.Printf("  %s -> %s\n", pair[0], pair[1])
			}
		}
		if len(report.Dropped) > 0 {
			fmt.Println("\nDropped labels (no usable content):")
			for _, raw := range report.Dropped {
				fmt.Printf("  %s\n", raw)
			}
		}
	}
}
