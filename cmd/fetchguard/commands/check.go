package commands

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upb/fetchguard/config"
	"github.com/upb/fetchguard/internal/policy"
)

// ErrBlocked is returned by check --exit-code when the request would be blocked
var ErrBlocked = errors.New("request would be blocked")

// NewCheckCmd creates the check command
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a request against the isolation policy",
		Example: `  fetchguard check --method POST --path /transfer --site cross-site --mode cors --dest empty
  fetchguard check --policy policy.yaml --path /embed/widget --site cross-site --mode navigate --dest iframe`,
		RunE: runCheck,
	}
	cmd.Flags().String("method", http.MethodGet, "Request method")
	cmd.Flags().String("path", "/", "Request path")
	cmd.Flags().String("site", "", "Sec-Fetch-Site value (omit for a request without fetch metadata)")
	cmd.Flags().String("mode", "", "Sec-Fetch-Mode value")
	cmd.Flags().String("dest", "", "Sec-Fetch-Dest value")
	cmd.Flags().String("policy", "", "YAML policy file (defaults to the built-in policy)")
	cmd.Flags().Bool("enforce-same-site", false, "Block same-site requests (without --policy)")
	cmd.Flags().String("asset-prefix", "", "Asset path prefix exemption (without --policy)")
	cmd.Flags().Bool("exit-code", false, "Exit non-zero when the request would be blocked")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	method, _ := flags.GetString("method")
	path, _ := flags.GetString("path")
	file, _ := flags.GetString("policy")
	exitCode, _ := flags.GetBool("exit-code")

	snap, err := checkSnapshot(cmd, file)
	if err != nil {
		return err
	}

	req := policy.Request{
		Method: strings.ToUpper(strings.TrimSpace(method)),
		Path:   path,
		Header: http.Header{},
	}
	for flag, header := range map[string]string{
		"site": policy.HeaderSecFetchSite,
		"mode": policy.HeaderSecFetchMode,
		"dest": policy.HeaderSecFetchDest,
	} {
		if !flags.Changed(flag) {
			continue
		}
		v, _ := flags.GetString(flag)
		req.Header.Set(header, v)
	}

	out := cmd.OutOrStdout()
	p, ok := snap.Resolve(path)
	if !ok {
		fmt.Fprintf(out, "decision: allow\nrule:     no-policy\nsource:   %s\n", snap.Source)
		return nil
	}

	decision, rule := policy.Explain(req, p)
	fmt.Fprintf(out, "decision: %s\nrule:     %s\nsource:   %s\n", decision, rule, snap.Source)
	if decision == policy.Block && p.ReportOnly() {
		fmt.Fprintln(out, "note:     report-only, the request would be forwarded")
	}

	if exitCode && decision == policy.Block && !p.ReportOnly() {
		return ErrBlocked
	}
	return nil
}

func checkSnapshot(cmd *cobra.Command, file string) (*policy.Snapshot, error) {
	enforce, _ := cmd.Flags().GetBool("enforce-same-site")
	prefix, _ := cmd.Flags().GetString("asset-prefix")

	cfg := config.PolicyConfig{
		Enabled:         true,
		File:            file,
		LogOnBlock:      true,
		EnforceSameSite: enforce,
		AssetPathPrefix: prefix,
	}
	snap, err := config.LoadPolicySnapshot(cfg)
	if err != nil {
		return nil, err
	}
	if file == "" {
		snap.Source = "flags"
	}
	return snap, nil
}
