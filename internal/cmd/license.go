package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/streamdesk/streamdesk/internal/cmn/logger"
	"github.com/streamdesk/streamdesk/internal/cmn/logger/tag"
	"github.com/streamdesk/streamdesk/internal/license"
)

// ErrFeatureNotAllowed is returned by "license check" when the feature is denied.
var ErrFeatureNotAllowed = errors.New("feature not allowed")

func License() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Inspect and manage the license",
		Long: `Inspect the license recorded for this deployment, activate a new key,
or check whether a feature is available under the current license.

The license server is taken from the LICENSE_SERVER environment variable,
then the settings file, then the built-in default.`,
	}
	cmd.AddCommand(
		LicenseStatus(),
		LicenseRefresh(),
		LicenseActivate(),
		LicenseCheck(),
		LicenseFeatures(),
		LicenseClear(),
	)
	return cmd
}

func LicenseStatus() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "status [flags]",
			Short: "Show the license status",
			Long: `Show the verification status of the recorded license.

Example:
  streamdesk license status
  streamdesk license status --refresh --json
`,
			Args: cobra.NoArgs,
		}, []commandLineFlag{refreshFlag, jsonFlag}, runLicenseStatus,
	)
}

func runLicenseStatus(ctx *Context, _ []string) error {
	refresh, _ := ctx.Command.Flags().GetBool("refresh")
	return printStatus(ctx, refresh)
}

func LicenseRefresh() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "refresh [flags]",
			Short: "Verify the license with the license server now",
			Long: `Contact the license server and print the fresh verification status.
This is the same as "license status --refresh".
`,
			Args: cobra.NoArgs,
		}, []commandLineFlag{jsonFlag}, runLicenseRefresh,
	)
}

func runLicenseRefresh(ctx *Context, _ []string) error {
	return printStatus(ctx, true)
}

func printStatus(ctx *Context, refresh bool) error {
	store := ctx.LicenseStore()
	mgr, err := ctx.NewLicenseManager(store, nil)
	if err != nil {
		return err
	}

	mgr.Status(ctx, refresh)
	status := mgr.DisplayStatus(ctx)

	out := ctx.Command.OutOrStdout()
	if asJSON, _ := ctx.Command.Flags().GetBool("json"); asJSON {
		return writeJSON(out, status)
	}
	_, err = fmt.Fprintln(out, renderStatus(status, store.ResolveAuthorityAddress(), colorEnabled(out)))
	return err
}

func LicenseActivate() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "activate [flags] <domain> <license key>",
			Short: "Activate a license key for a domain",
			Long: `Activate a license key with the license server and record it in the
settings file. The new license takes effect immediately.

Example:
  streamdesk license activate media.example.com ABCD-1234-EFGH-5678
`,
			Args: cobra.ExactArgs(2),
		}, []commandLineFlag{jsonFlag}, runLicenseActivate,
	)
}

func runLicenseActivate(ctx *Context, args []string) error {
	store := ctx.LicenseStore()
	mgr, err := ctx.NewLicenseManager(store, nil)
	if err != nil {
		return err
	}

	domain, key := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	outcome := mgr.Activate(ctx, domain, key)
	if !outcome.Success {
		return errors.New(outcome.Message)
	}

	if err := store.SaveLicense(domain, key); err != nil {
		return fmt.Errorf("license activated but could not be saved: %w", err)
	}
	mgr.Invalidate()
	logger.Info(ctx, "License saved", tag.Domain(domain), tag.File(store.Path()))

	out := ctx.Command.OutOrStdout()
	if asJSON, _ := ctx.Command.Flags().GetBool("json"); asJSON {
		return writeJSON(out, outcome)
	}
	_, err = fmt.Fprintln(out, renderActivation(outcome, colorEnabled(out)))
	return err
}

func LicenseCheck() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "check [flags] <feature>",
			Short: "Check whether a feature is available",
			Long: `Report whether a feature may be used under the current license.
The command exits with a non-zero status when the feature is not allowed.

Example:
  streamdesk license check telegram_bot
`,
			Args: cobra.ExactArgs(1),
		}, []commandLineFlag{jsonFlag}, runLicenseCheck,
	)
}

func runLicenseCheck(ctx *Context, args []string) error {
	mgr, err := ctx.NewLicenseManager(ctx.LicenseStore(), nil)
	if err != nil {
		return err
	}

	feature := args[0]
	d := mgr.CheckFeature(ctx, feature)

	out := ctx.Command.OutOrStdout()
	if asJSON, _ := ctx.Command.Flags().GetBool("json"); asJSON {
		if err := writeJSON(out, featureRow{Feature: feature, Decision: d}); err != nil {
			return err
		}
	} else if _, err := fmt.Fprintln(out, renderDecisions([]featureRow{{Feature: feature, Decision: d}}, colorEnabled(out))); err != nil {
		return err
	}

	if !d.Allowed {
		return fmt.Errorf("%w: %s: %s", ErrFeatureNotAllowed, feature, d.Reason)
	}
	return nil
}

func LicenseFeatures() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "features [flags]",
			Short: "List tier-gated features and whether they are available",
			Args:  cobra.NoArgs,
		}, []commandLineFlag{jsonFlag}, runLicenseFeatures,
	)
}

func runLicenseFeatures(ctx *Context, _ []string) error {
	mgr, err := ctx.NewLicenseManager(ctx.LicenseStore(), nil)
	if err != nil {
		return err
	}

	rows := lo.Map(license.RestrictedFeatures(), func(f string, _ int) featureRow {
		return featureRow{Feature: f, Decision: mgr.CheckFeature(ctx, f)}
	})

	out := ctx.Command.OutOrStdout()
	if asJSON, _ := ctx.Command.Flags().GetBool("json"); asJSON {
		return writeJSON(out, rows)
	}
	_, err = fmt.Fprintln(out, renderDecisions(rows, colorEnabled(out)))
	return err
}

func LicenseClear() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the recorded license",
			Args:  cobra.NoArgs,
		}, nil, runLicenseClear,
	)
}

func runLicenseClear(ctx *Context, _ []string) error {
	store := ctx.LicenseStore()
	if err := store.ClearLicense(); err != nil {
		return fmt.Errorf("failed to clear license: %w", err)
	}
	logger.Info(ctx, "License cleared", tag.File(store.Path()))
	return nil
}

type featureRow struct {
	Feature string `json:"feature"`
	license.Decision
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// colorEnabled reports whether w is a terminal that should receive colored output.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func renderStatus(s license.DisplayStatus, authority string, colored bool) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendRow(table.Row{"Configured", yesNo(s.Configured, colored)})
	t.AppendRow(table.Row{"Valid", yesNo(s.Valid, colored)})
	if s.Config != nil {
		t.AppendRow(table.Row{"Domain", s.Config.Domain})
		t.AppendRow(table.Row{"License Key", s.Config.LicenseKey})
	}
	if s.Info != nil {
		t.AppendRow(table.Row{"Message", s.Info.Message})
		appendLicenseRows(t, s.Info.License)
	}
	t.AppendRow(table.Row{"License Server", authority})
	return t.Render()
}

func renderActivation(o license.ActivationOutcome, colored bool) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendRow(table.Row{"Activated", yesNo(o.Success, colored)})
	t.AppendRow(table.Row{"Message", o.Message})
	appendLicenseRows(t, o.License)
	return t.Render()
}

func appendLicenseRows(t table.Writer, info *license.LicenseInfo) {
	if info == nil {
		return
	}
	t.AppendRow(table.Row{"Tier", string(info.Tier)})
	if info.ExpiresAt != nil {
		t.AppendRow(table.Row{"Expires", info.ExpiresAt.String()})
	}
	if info.CustomerName != "" {
		t.AppendRow(table.Row{"Customer", info.CustomerName})
	}
	if info.MaxUsers != nil {
		t.AppendRow(table.Row{"Max Users", strconv.Itoa(*info.MaxUsers)})
	}
}

var featureHeader = table.Row{
	"Feature",
	"Allowed",
	"Reason",
}

func renderDecisions(rows []featureRow, colored bool) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(featureHeader)
	for _, r := range rows {
		t.AppendRow(table.Row{r.Feature, yesNo(r.Allowed, colored), r.Reason})
	}
	return t.Render()
}

// yesNo renders b as green "yes" or red "no" when colored is set.
func yesNo(b bool, colored bool) string {
	s, c := "no", color.New(color.FgRed)
	if b {
		s, c = "yes", color.New(color.FgGreen)
	}
	if !colored {
		return s
	}
	c.EnableColor()
	return c.Sprint(s)
}
