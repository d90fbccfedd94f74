package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/config"
	"github.com/JakeFAU/frisbee/internal/harvest"
)

type searchOptions struct {
	engine   string
	domain   string
	file     string
	preset   string
	limit    int
	modifier string
	save     bool
	greedy   bool
	fuzzy    bool
	asJSON   bool
}

// newSearchCmd creates the 'search' subcommand.
func newSearchCmd() *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search for email addresses of one or more domains",
		Long: `Runs one job per domain on the configured search engine and prints the
addresses found. Domains come from --domain, a file with one domain per line
(--file) or a preset from the configuration (--preset).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.engine, "engine", "e", "", "search engine to use (default harvest.default_engine)")
	flags.StringVarP(&opts.domain, "domain", "d", "", "email domain to collect upon")
	flags.StringVarP(&opts.file, "file", "f", "", "file of email domains to collect upon")
	flags.StringVar(&opts.preset, "preset", "", "configured job list to run")
	flags.IntVarP(&opts.limit, "limit", "l", 0, "limit number of results (default harvest.default_limit)")
	flags.StringVarP(&opts.modifier, "modifier", "m", "", "search modifier to add to the query")
	flags.BoolVarP(&opts.save, "save", "s", false, "save results through the configured storage backend")
	flags.BoolVar(&opts.greedy, "greedy", false, "use found results to search more")
	flags.BoolVar(&opts.fuzzy, "fuzzy", false, "use keyword instead of domain")
	flags.BoolVar(&opts.asJSON, "json", false, "print outcomes as JSON")
	cmd.MarkFlagsMutuallyExclusive("domain", "file", "preset")
	cmd.MarkFlagsOneRequired("domain", "file", "preset")
	return cmd
}

func runSearch(cmd *cobra.Command, opts *searchOptions) error {
	sess, err := resolveSession(cmd.Context())
	if err != nil {
		return err
	}
	if opts.save {
		sess.cfg.Storage.Enabled = true
	}

	jobs, err := buildJobs(sess.cfg, opts)
	if err != nil {
		return err
	}

	a, err := sess.start(cmd.Context())
	if err != nil {
		return err
	}
	a.Start(cmd.Context())

	orch := a.Orchestrator()
	searchErr := orch.Search(cmd.Context(), jobs)
	results := orch.Results()
	if searchErr != nil {
		sess.logger.Error("search stopped", zap.Error(searchErr), zap.Int("outcomes", len(results)))
		if errors.Is(searchErr, harvest.ErrInvalidJobList) {
			return fmt.Errorf("search: %w", searchErr)
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "    ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
	} else {
		printSummary(cmd.OutOrStdout(), results)
	}
	if searchErr != nil {
		return fmt.Errorf("search: %w", searchErr)
	}
	return nil
}

// buildJobs turns the flags into a job list.
func buildJobs(cfg config.Config, opts *searchOptions) ([]harvest.Job, error) {
	if opts.preset != "" {
		jobs, err := cfg.Preset(opts.preset)
		if err != nil {
			return nil, fmt.Errorf("load preset: %w", err)
		}
		return jobs, nil
	}

	domains := []string{opts.domain}
	if opts.file != "" {
		f, err := os.Open(opts.file)
		if err != nil {
			return nil, fmt.Errorf("open domain file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		if domains, err = harvest.ReadDomains(f); err != nil {
			return nil, fmt.Errorf("read %s: %w", opts.file, err)
		}
		if len(domains) == 0 {
			return nil, fmt.Errorf("%w: %s lists no domains", harvest.ErrInvalidJobList, opts.file)
		}
	}

	jobs := make([]harvest.Job, 0, len(domains))
	for _, domain := range domains {
		jobs = append(jobs, cfg.WithDefaults(harvest.Job{
			Engine:   opts.engine,
			Domain:   domain,
			Modifier: opts.modifier,
			Limit:    opts.limit,
			Greedy:   opts.greedy,
			Fuzzy:    opts.fuzzy,
		}))
	}
	return jobs, nil
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.FgYellow)
	emailColor  = color.New(color.FgGreen)
	errorColor  = color.New(color.FgRed)
)

// printSummary renders one block per outcome.
func printSummary(w io.Writer, results []harvest.Outcome) {
	for _, o := range results {
		headerColor.Fprintf(w, "-= %s Details =-\n", strings.ToUpper(o.Project))
		field := func(name, value string) {
			labelColor.Fprint(w, "\t[*] ")
			fmt.Fprintf(w, "%s: %s\n", name, value)
		}
		modifier := o.Job.Modifier
		if modifier == "" {
			modifier = "None"
		}
		field("Engine", o.Job.Engine)
		field("Domain", o.Job.Domain)
		field("Modifier", modifier)
		field("Limit", fmt.Sprint(o.Job.Limit))
		field("Duration", fmt.Sprintf("%d seconds", int64(o.Duration().Seconds())))
		field("Count", fmt.Sprint(len(o.Results.Emails)))
		if o.Failed() {
			errorColor.Fprintf(w, "\t[!] Error: %s\n", o.ErrorText())
		}

		headerColor.Fprintln(w, "\n-= Email Results =-")
		if len(o.Results.Emails) == 0 {
			fmt.Fprintln(w, "No results")
		}
		for _, email := range o.Results.Emails {
			emailColor.Fprintln(w, email)
		}
		fmt.Fprintln(w)
	}
}
