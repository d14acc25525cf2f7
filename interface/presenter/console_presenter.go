package presenter

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

const notAvailable = "N/A"

// ConsolePresenterImpl implements Presenter for terminal output
type ConsolePresenterImpl struct {
	writer    io.Writer
	errWriter io.Writer
}

// NewConsolePresenter creates a new console presenter
func NewConsolePresenter() *ConsolePresenterImpl {
	return NewConsolePresenterWithWriters(os.Stdout, os.Stderr)
}

// NewConsolePresenterWithWriters creates a console presenter writing to w and errors to errW
func NewConsolePresenterWithWriters(w, errW io.Writer) *ConsolePresenterImpl {
	return &ConsolePresenterImpl{writer: w, errWriter: errW}
}

// PrintVersion prints version information
func (p *ConsolePresenterImpl) PrintVersion(version string) {
	_, _ = fmt.Fprintf(p.writer, "autoloadwatch version %s\n", version)
}

// PrintError prints an error message
func (p *ConsolePresenterImpl) PrintError(err error) {
	_, _ = fmt.Fprintf(p.errWriter, "Error: %v\n", err)
}

// PrintStatus prints the autoload metrics and the sync state
func (p *ConsolePresenterImpl) PrintStatus(info *usecase.StatusInfo) error {
	_, _ = fmt.Fprintln(p.writer, "Autoloaded Options")
	_, _ = fmt.Fprintln(p.writer, strings.Repeat("=", 50))

	tw := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	if s := info.Snapshot; s != nil {
		_, _ = fmt.Fprintf(tw, "Count:\t%d\n", s.Count)
		_, _ = fmt.Fprintf(tw, "Total Size:\t%s (%d bytes)\n", entity.FormatSizeKB(s.TotalSizeBytes), s.TotalSizeBytes)
		_, _ = fmt.Fprintf(tw, "Collected:\t%s UTC\n", s.CollectedAtString())
	} else {
		_, _ = fmt.Fprintf(tw, "Count:\t%s\n", notAvailable)
		_, _ = fmt.Fprintf(tw, "Total Size:\t%s\n", notAvailable)
		_, _ = fmt.Fprintf(tw, "Collection Error:\t%s\n", info.CollectError)
	}
	_ = tw.Flush()

	if info.Snapshot != nil && len(info.Snapshot.TopKeys) > 0 {
		_, _ = fmt.Fprintln(p.writer)
		_, _ = fmt.Fprintln(p.writer, "Largest Options:")
		tw = tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', tabwriter.AlignRight)
		_, _ = fmt.Fprintln(tw, "  #\tOption\tSize\t")
		for i, k := range info.Snapshot.TopKeys {
			_, _ = fmt.Fprintf(tw, "  %d\t%s\t%s\t\n", i+1, k.Name, entity.FormatSizeKB(k.SizeBytes))
		}
		_ = tw.Flush()
	}

	_, _ = fmt.Fprintln(p.writer)
	_, _ = fmt.Fprintln(p.writer, "Warehouse Sync")
	_, _ = fmt.Fprintln(p.writer, strings.Repeat("-", 50))

	tw = tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Last Sync:\t%s\n", info.LastSync)
	if info.LastError != "" {
		_, _ = fmt.Fprintf(tw, "Last Error:\t%s\n", info.LastError)
	}
	nextRun := info.NextRun
	if nextRun == "" {
		nextRun = "not scheduled"
	}
	_, _ = fmt.Fprintf(tw, "Next Run:\t%s\n", nextRun)
	_, _ = fmt.Fprintf(tw, "Timezone:\t%s (%s)\n", info.Timezone.Name, info.Timezone.Offset)
	if len(info.MissingConfig) > 0 {
		_, _ = fmt.Fprintf(tw, "Missing Config:\t%s\n", strings.Join(info.MissingConfig, ", "))
	}
	return tw.Flush()
}

// PrintPipelineResult prints the outcome of a manual push
func (p *ConsolePresenterImpl) PrintPipelineResult(result *usecase.PipelineResult) error {
	if result.Success {
		_, _ = fmt.Fprintln(p.writer, "Push succeeded")
	} else {
		_, _ = fmt.Fprintln(p.writer, "Push failed")
	}

	tw := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	if s := result.Snapshot; s != nil {
		_, _ = fmt.Fprintf(tw, "  Count:\t%d\n", s.Count)
		_, _ = fmt.Fprintf(tw, "  Total Size:\t%s\n", entity.FormatSizeKB(s.TotalSizeBytes))
		_, _ = fmt.Fprintf(tw, "  Collected:\t%s UTC\n", s.CollectedAtString())
	}
	if !result.Success {
		_, _ = fmt.Fprintf(tw, "  Error:\t%s\n", result.Error)
	}
	_, _ = fmt.Fprintf(tw, "  Duration:\t%s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	return tw.Flush()
}

// PrintNextRun prints the next scheduled run. next is expected in the site location.
func (p *ConsolePresenterImpl) PrintNextRun(next time.Time, tz repository.TimezoneInfo, created bool) error {
	_, _ = fmt.Fprintf(p.writer, "Next run: %s (%s)\n", next.Format("2006-01-02 15:04:05"), tz.Name)
	_, _ = fmt.Fprintf(p.writer, "          %s UTC\n", next.UTC().Format("2006-01-02 15:04:05"))
	if created {
		_, _ = fmt.Fprintln(p.writer, "Schedule registered")
	}
	return nil
}

// PrintConfig prints the redacted effective configuration section by section
func (p *ConsolePresenterImpl) PrintConfig(exported map[string]interface{}, path string) error {
	_, _ = fmt.Fprintf(p.writer, "Config file: %s\n", path)

	sources, _ := exported["_sources"].(map[string]string)
	sections := make([]string, 0, len(exported))
	for name := range exported {
		if strings.HasPrefix(name, "_") {
			continue
		}
		sections = append(sections, name)
	}
	sort.Strings(sections)

	for _, name := range sections {
		value := exported[name]
		section, ok := value.(map[string]interface{})
		if !ok {
			_, _ = fmt.Fprintf(p.writer, "\n%s: %v\n", name, value)
			continue
		}

		header := name
		if src := sectionSources(sources, name); len(src) > 0 {
			header = fmt.Sprintf("%s (%s)", name, strings.Join(src, ", "))
		}
		_, _ = fmt.Fprintf(p.writer, "\n[%s]\n", header)
		p.printSection(section, "  ")
	}
	return nil
}

func (p *ConsolePresenterImpl) printSection(section map[string]interface{}, indent string) {
	keys := make([]string, 0, len(section))
	for k := range section {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		if nested, ok := section[k].(map[string]interface{}); ok {
			_ = tw.Flush()
			_, _ = fmt.Fprintf(p.writer, "%s%s:\n", indent, k)
			p.printSection(nested, indent+"  ")
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s%s:\t%v\n", indent, k, section[k])
	}
	_ = tw.Flush()
}

// sectionSources returns the distinct sources recorded for the fields of an
// exported section. Source keys look like "CloudWatch.Region" while the
// exported section is "cloudwatch".
func sectionSources(sources map[string]string, section string) []string {
	want := strings.ReplaceAll(section, "_", "")
	seen := make(map[string]bool)
	var out []string
	for key, src := range sources {
		prefix, _, ok := strings.Cut(key, ".")
		if !ok || !strings.EqualFold(prefix, want) || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}
