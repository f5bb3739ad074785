package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/timzifer/geoconfig/config"
	"github.com/timzifer/geoconfig/spec"
)

// writeReport prints the classified specs of cfg and its hierarchy levels.
func writeReport(w io.Writer, cfg *config.Config) int {
	exitCode := 0
	printConfig(w, cfg, "")

	upstream, err := cfg.Upstream()
	if err != nil {
		fmt.Fprintf(w, "Hierarchy: %v\n", err)
		exitCode = 1
	}
	for _, child := range upstream {
		level, _ := child.Level()
		fmt.Fprintf(w, "\nLevel %d\n", level)
		printConfig(w, child, "  ")
	}

	fmt.Fprintln(w)
	if exitCode == 0 {
		fmt.Fprintln(w, "Configuration check completed successfully.")
	} else {
		fmt.Fprintln(w, "Configuration check completed with errors.")
	}
	return exitCode
}

func printConfig(w io.Writer, cfg *config.Config, indent string) {
	fmt.Fprintf(w, "%sFile: %s\n", indent, cfg.Path())
	if modelType, err := cfg.ModelType(); err == nil {
		fmt.Fprintf(w, "%sModel type: %s\n", indent, modelType)
	} else {
		fmt.Fprintf(w, "%sModel type: <none>\n", indent)
	}
	fmt.Fprintf(w, "%sState: %s\n", indent, cfg.State())

	for _, section := range []string{config.InputSourcesSection, config.InputCacheSection} {
		if entries := cfg.Section(section); entries != nil {
			fmt.Fprintf(w, "%s%s: %d entries\n", indent, section, len(entries.Paths()))
		}
	}

	flat := cfg.Flat()
	fmt.Fprintf(w, "%sSpecs:\n", indent)
	if flat.Len() == 0 {
		fmt.Fprintf(w, "%s  <none>\n", indent)
		return
	}
	for _, key := range flat.Keys() {
		s, _ := flat.Get(key)
		fmt.Fprintf(w, "%s  - %s: %s\n", indent, key, describeSpec(s))
	}
}

func describeSpec(s spec.Spec) string {
	switch typed := s.(type) {
	case *spec.Value:
		return fmt.Sprintf("value %q", typed.String())
	case *spec.Filepath:
		return fmt.Sprintf("filepath %s (%s)", typed.Abs, typed.Format())
	case *spec.Cached:
		return fmt.Sprintf("cached %s", typed.Target())
	case *spec.ModuleCall:
		args := make([]string, 0, len(typed.Args))
		for _, arg := range typed.Args {
			args = append(args, describeSpec(arg))
		}
		return fmt.Sprintf("module_call %s(%s)", typed.QualifiedName(), strings.Join(args, ", "))
	case *spec.Expression:
		if result, err := typed.Evaluate(); err == nil {
			return fmt.Sprintf("expression %s = %s", typed.Raw, result)
		}
		return fmt.Sprintf("expression %s", typed.Raw)
	case *spec.Multi:
		return fmt.Sprintf("multi [%d items]", len(typed.Items))
	case nil:
		return "<nil>"
	default:
		return string(s.Kind())
	}
}
