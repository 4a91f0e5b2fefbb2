package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/policy"
	"mercator-hq/callisto/pkg/usage"
)

var policyFlags struct {
	at    string
	to    string
	actor string
	file  string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage usage policies",
	Long: `Manage versioned usage policies.

Policies are declared in a YAML file and synchronized into storage. Each
policy moves through draft, active and retired; every status change is
recorded as a revision.

Subcommands:
  list       - List every stored policy
  show       - Show one policy and its revisions
  active     - Show the policy in force now or at --at
  sync       - Synchronize the policies file into storage
  lint       - Validate a policies file without storing it
  transition - Move a policy to another status

Examples:
  # Validate the file, then load it
  callisto policy lint --file policies.yaml
  callisto policy sync

  # Activate a draft
  callisto policy transition 5f0c... --to active --actor registrar`,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored policies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			policies, err := a.policies.List(cmd.Context())
			if err != nil {
				return err
			}
			return output(cmd, policyTable(policies))
		})
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show <policy-id>",
	Short: "Show a policy and its revisions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			p, err := a.policies.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			revisions, err := a.policies.Revisions(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			return output(cmd, &policyDetail{Policy: p, Revisions: revisions})
		})
	},
}

var policyActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the policy in force",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		at := time.Now()
		if policyFlags.at != "" {
			parsed, err := time.Parse(time.RFC3339, policyFlags.at)
			if err != nil {
				return cli.NewConfigError("at", "expected an RFC 3339 timestamp")
			}
			at = parsed
		}
		return withApp(cmd, func(a *app) error {
			p, err := a.policies.ActivePolicy(cmd.Context(), at)
			if err != nil {
				return err
			}
			if p == nil {
				return usage.NewNotFound("policy", "active at "+at.UTC().Format(time.RFC3339))
			}
			return output(cmd, policyTable{p})
		})
	},
}

var policySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the policies file into storage",
	Long: `Synchronize the policies file into storage.

New (title, version) pairs are created; status changes allowed by the
lifecycle are applied as revisions. Entries that are unchanged or whose
status change is not allowed are left alone.

Examples:
  callisto policy sync
  callisto policy sync --file /etc/callisto/policies.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			if policyFlags.file != "" {
				a.cfg.Policy.FilePath = policyFlags.file
			}
			src := a.policySource()
			if src == nil {
				return cli.NewConfigError("policy.file_path", "no policies file configured")
			}
			result, err := src.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return output(cmd, syncTable{result})
		})
	},
}

var policyLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate a policies file",
	Long: `Validate a policies file without touching storage.

Every entry is checked for required fields, thresholds, effective ranges,
status and rules; duplicate (title, version) pairs are reported too.

Examples:
  callisto policy lint --file policies.yaml
  callisto policy lint --file policies.yaml --format json`,
	Args: cobra.NoArgs,
	RunE: lintPolicies,
}

var policyTransitionCmd = &cobra.Command{
	Use:   "transition <policy-id>",
	Short: "Move a policy to another status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to := usage.PolicyStatus(policyFlags.to)
		if !to.Valid() {
			return cli.NewConfigError("to", fmt.Sprintf("unknown status %q (draft, active, retired)", policyFlags.to))
		}
		return withApp(cmd, func(a *app) error {
			p, err := a.policies.Transition(cmd.Context(), args[0], to, policyFlags.actor)
			if err != nil {
				return err
			}
			return output(cmd, policyTable{p})
		})
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyShowCmd, policyActiveCmd, policySyncCmd, policyLintCmd, policyTransitionCmd)

	policyActiveCmd.Flags().StringVar(&policyFlags.at, "at", "", "instant to resolve (RFC 3339, default now)")
	policySyncCmd.Flags().StringVarP(&policyFlags.file, "file", "f", "", "policies file (default from config)")
	policyLintCmd.Flags().StringVarP(&policyFlags.file, "file", "f", "", "policies file (default from config)")
	policyTransitionCmd.Flags().StringVar(&policyFlags.to, "to", "", "target status: active, retired")
	policyTransitionCmd.Flags().StringVar(&policyFlags.actor, "actor", os.Getenv("USER"), "who made the change")
	_ = policyTransitionCmd.MarkFlagRequired("to")
}

// LintResult is the outcome of linting a policies file.
type LintResult struct {
	File     string   `json:"file"`
	Valid    bool     `json:"valid"`
	Policies int      `json:"policies"`
	Errors   []string `json:"errors,omitempty"`
}

func lintPolicies(cmd *cobra.Command, args []string) error {
	path := policyFlags.file
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path = cfg.Policy.FilePath
	}
	if path == "" {
		return cli.NewConfigError("file", "either --file or policy.file_path must be set")
	}

	result := &LintResult{File: path}
	f, err := policy.LoadFile(path)
	if err != nil {
		result.Errors = []string{err.Error()}
	} else {
		result.Policies = len(f.Policies)
		for _, problem := range policy.Lint(f) {
			result.Errors = append(result.Errors, problem.Error())
		}
	}
	result.Valid = len(result.Errors) == 0

	if err := output(cmd, result); err != nil {
		return err
	}
	if !result.Valid {
		return &usage.ValidationError{Entity: "policy_file", Field: "policies", Reason: strconv.Itoa(len(result.Errors)) + " problem(s) found"}
	}
	return nil
}

// String renders the lint result for text output.
func (r *LintResult) String() string {
	if r.Valid {
		return fmt.Sprintf("✓ %s: %d policies valid", r.File, r.Policies)
	}
	s := fmt.Sprintf("✗ %s: %d problem(s)", r.File, len(r.Errors))
	for _, e := range r.Errors {
		s += "\n  - " + e
	}
	return s
}
